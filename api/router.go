// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package api wires the cardengine HTTP façade: routing for C7's GET
// DATA / PUT DATA / GET PUBLIC KEY entry points plus the inventory's
// device listing, behind a per-remote-address rate limiter guarding the
// card simulator against APDU floods.
package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gnuk-go/cardengine/api/handlers"
)

// NewRouter builds the façade's mux, rate-limited at limit requests/sec
// with the given burst, per remote address.
func NewRouter(s *handlers.CardServer, limit float64, burst int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/card/data/{tag}", s.GetData)
	mux.HandleFunc("PUT /api/v1/card/data/{tag}", s.PutData)
	mux.HandleFunc("GET /api/v1/card/pubkey/{role}", s.GetPublicKey)
	mux.HandleFunc("GET /api/v1/devices", s.Devices)

	return rateLimit(mux, limit, burst)
}

// limiterSet hands out a token-bucket limiter per remote address, the way
// a fleet of simulated cards would want one quota per client connection
// rather than one shared across the whole server.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (s *limiterSet) forAddr(addr string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[addr]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[addr] = l
	}
	return l
}

func rateLimit(next http.Handler, perSecond float64, burst int) http.Handler {
	set := &limiterSet{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !set.forAddr(host).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
