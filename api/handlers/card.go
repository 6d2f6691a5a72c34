// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package handlers implements the HTTP transport for C7, the card's
// GET/PUT façade: one route per APDU-level entry point, translating a
// tag and body to and from the card's GetData/PutData/GetPublicKey calls.
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gnuk-go/cardengine/internal/card"
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/inventory"
)

// CardServer binds one live Card engine (and its inventory row) to the HTTP
// handlers below. A cardengine "serve" process hosts exactly one card, the
// way an APDU session always addresses exactly one physical card.
type CardServer struct {
	Card   *card.Card
	Inv    *inventory.Store
	CardID uint
}

func parseTag(r *http.Request) (catalog.Tag, bool) {
	raw := r.PathValue("tag")
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, false
	}
	return catalog.Tag(v), true
}

func (s *CardServer) audit(tag catalog.Tag, op string, sw card.StatusWord) {
	if s.Inv == nil {
		return
	}
	if err := s.Inv.AppendAudit(s.CardID, uint16(tag), op, uint16(sw)); err != nil {
		slog.Error("appending audit entry failed", "err", err)
	}
}

func writeStatus(w http.ResponseWriter, body []byte, sw card.StatusWord) {
	w.Header().Set("Content-Type", "application/octet-stream")
	switch sw {
	case card.SWSuccess:
		w.WriteHeader(http.StatusOK)
	case card.SWRecordNotFound:
		w.WriteHeader(http.StatusNotFound)
	case card.SWSecurityNotSatisfied:
		w.WriteHeader(http.StatusForbidden)
	case card.SWWrongLength:
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusInsufficientStorage)
	}
	out := append(body, byte(sw>>8), byte(sw))
	_, _ = w.Write(out)
}

// GetData handles GET /api/v1/card/data/{tag}.
func (s *CardServer) GetData(w http.ResponseWriter, r *http.Request) {
	tag, ok := parseTag(r)
	if !ok {
		http.Error(w, "invalid tag", http.StatusBadRequest)
		return
	}
	body, sw := s.Card.GetData(tag)
	s.audit(tag, "get", sw)
	writeStatus(w, body, sw)
}

// PutData handles PUT /api/v1/card/data/{tag}.
func (s *CardServer) PutData(w http.ResponseWriter, r *http.Request) {
	tag, ok := parseTag(r)
	if !ok {
		http.Error(w, "invalid tag", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	sw := s.Card.PutData(tag, payload)
	s.audit(tag, "put", sw)
	writeStatus(w, nil, sw)
}

// GetPublicKey handles GET /api/v1/card/pubkey/{role}; role is "sig", "dec", or "aut".
func (s *CardServer) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	var role envelope.Role
	switch r.PathValue("role") {
	case "sig":
		role = envelope.RoleSigning
	case "dec":
		role = envelope.RoleDecryption
	case "aut":
		role = envelope.RoleAuthentication
	default:
		http.Error(w, "role must be sig, dec, or aut", http.StatusBadRequest)
		return
	}
	body, sw := s.Card.GetPublicKey(role)
	s.audit(0x7f49, "pubkey", sw)
	writeStatus(w, body, sw)
}

// Devices lists every card registered in the inventory, combining
// provisioning metadata with the last scan's telemetry.
// Exposed as GET /api/v1/devices.
func (s *CardServer) Devices(w http.ResponseWriter, r *http.Request) {
	if s.Inv == nil {
		http.Error(w, "inventory not configured", http.StatusServiceUnavailable)
		return
	}
	cards, err := s.Inv.ListCards()
	if err != nil {
		slog.Error("listing cards failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cards); err != nil {
		slog.Error("encoding devices response failed", "err", err)
	}
}
