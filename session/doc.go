// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package session is the Session Registry: the authoritative in-memory view
// of which connections are live in which room. Nothing here is persisted;
// the registry is rebuilt as players connect.
package session
