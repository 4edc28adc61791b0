// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package geo provides the geographic primitives shared by the routing core:
// great-circle distance and a small, strict WKT parser/serializer pair.
//
// WKT stores longitude before latitude; every function in this package takes
// and returns coordinates in (lat, lng) order, swapping at the boundary.
// Malformed WKT fails with a *ParseError; callers must never fall back to
// (0,0) silently, since a zeroed coordinate would route users into the Gulf
// of Guinea instead of failing loudly.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// earthRadiusMeters is the mean spherical Earth radius.
const earthRadiusMeters = 6371000.0

// Coordinate is a (latitude, longitude) pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParseError reports malformed WKT input. It carries the offending text so
// snapshot loaders can log exactly which geometry was rejected.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid WKT %q: %s", e.Input, e.Reason)
}

// Haversine returns the great-circle distance in meters between two points
// using the spherical-Earth approximation.
//
// The function is pure and symmetric: Haversine(a, b) == Haversine(b, a),
// and Haversine(a, a) == 0.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// ParsePointWKT parses a "POINT(lng lat)" representation and returns the
// coordinate in (lat, lng) order.
func ParsePointWKT(text string) (Coordinate, error) {
	body, err := unwrap(text, "POINT")
	if err != nil {
		return Coordinate{}, err
	}

	coord, err := parsePair(text, body)
	if err != nil {
		return Coordinate{}, err
	}
	return coord, nil
}

// ParseLineWKT parses a "LINESTRING(lng lat, lng lat, ...)" representation
// and returns the coordinates in (lat, lng) order. A linestring with fewer
// than two points is rejected.
func ParseLineWKT(text string) ([]Coordinate, error) {
	body, err := unwrap(text, "LINESTRING")
	if err != nil {
		return nil, err
	}

	parts := strings.Split(body, ",")
	if len(parts) < 2 {
		return nil, &ParseError{Input: text, Reason: "linestring requires at least two points"}
	}

	coords := make([]Coordinate, 0, len(parts))
	for _, part := range parts {
		coord, err := parsePair(text, part)
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

// FormatPointWKT serializes a coordinate as "POINT(lng lat)".
func FormatPointWKT(c Coordinate) string {
	return fmt.Sprintf("POINT(%s %s)", formatDegree(c.Lng), formatDegree(c.Lat))
}

// FormatLineWKT serializes an ordered coordinate sequence as
// "LINESTRING(lng lat, lng lat, ...)".
func FormatLineWKT(coords []Coordinate) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, c := range coords {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatDegree(c.Lng))
		b.WriteByte(' ')
		b.WriteString(formatDegree(c.Lat))
	}
	b.WriteByte(')')
	return b.String()
}

// unwrap strips "KEYWORD(" and the trailing ")" from a WKT literal,
// tolerating surrounding whitespace and lowercase keywords.
func unwrap(text, keyword string) (string, error) {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	if !strings.HasPrefix(upper, keyword) {
		return "", &ParseError{Input: text, Reason: "expected " + keyword}
	}

	rest := strings.TrimSpace(trimmed[len(keyword):])
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", &ParseError{Input: text, Reason: "unbalanced parentheses"}
	}

	body := strings.TrimSpace(rest[1 : len(rest)-1])
	if body == "" {
		return "", &ParseError{Input: text, Reason: "empty coordinate list"}
	}
	return body, nil
}

// parsePair parses one "lng lat" token pair, returning (lat, lng).
func parsePair(input, pair string) (Coordinate, error) {
	fields := strings.Fields(strings.TrimSpace(pair))
	if len(fields) != 2 {
		return Coordinate{}, &ParseError{Input: input, Reason: "expected two coordinate values"}
	}

	lng, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Coordinate{}, &ParseError{Input: input, Reason: "longitude is not a number"}
	}

	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Coordinate{}, &ParseError{Input: input, Reason: "latitude is not a number"}
	}

	return Coordinate{Lat: lat, Lng: lng}, nil
}

func formatDegree(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
