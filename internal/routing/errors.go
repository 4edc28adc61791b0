// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package routing

import "errors"

// Sentinel errors of the routing engine.
var (
	// ErrEmptyGraph is a configuration error: the loaded snapshot has no
	// nodes, so no search can run. The engine fails fast rather than
	// returning an empty route.
	ErrEmptyGraph = errors.New("street graph snapshot has no nodes")

	// ErrMissingDestination rejects a query carrying neither an explicit
	// destination nor a resolvable target reference.
	ErrMissingDestination = errors.New("query needs exactly one of destination or target")

	// ErrTargetUnresolved means the target resolver had no coordinates
	// for the referenced entity.
	ErrTargetUnresolved = errors.New("target reference could not be resolved to coordinates")
)
