// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/gnuk-go/cardengine/internal/card"
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/nvram"
	"github.com/gnuk-go/cardengine/internal/rngsrc"
)

// openEngine opens (or creates) the pool image and key-slot arena image
// named by nv, wires the default collaborators, and runs the
// initial scan (C6) that rebuilds every volatile index.
func openEngine(nv NVConfig, serial [4]byte) (*card.Card, error) {
	fs := afero.NewOsFs()

	poolMedium, err := nvram.OpenFileMedium(fs, nv.PoolImagePath, nv.poolImageSize())
	if err != nil {
		return nil, fmt.Errorf("opening pool image: %w", err)
	}
	pool, err := nvram.Open(poolMedium)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}

	const keySlotStride = 2 + nvram.KeySlotEncryptedLen + nvram.KeySlotModulusLen
	keyMedium, err := nvram.OpenFileMedium(fs, nv.KeyImagePath, nv.KeySlotCount*keySlotStride)
	if err != nil {
		return nil, fmt.Errorf("opening key-slot image: %w", err)
	}
	arena, err := nvram.OpenKeySlotArena(keyMedium, 0, nv.KeySlotCount)
	if err != nil {
		return nil, fmt.Errorf("opening key-slot arena: %w", err)
	}

	cfg := catalog.Config{
		Manufacturer: nv.Manufacturer,
		Serial:       serial,
		MaxCmdBytes:  nv.MaxCmdBytes,
		MaxResBytes:  nv.MaxResBytes,
	}
	session := &card.Session{}
	coll := card.Collaborators{
		Hasher:  collab.SHA1Hasher{},
		Cipher:  collab.AESCFB128Cipher{},
		RNG:     rngsrc.New(),
		Modulus: collab.StubModulusCalculator{},
	}

	return card.NewCard(pool, arena, cfg, session, coll)
}
