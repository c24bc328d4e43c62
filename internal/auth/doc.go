// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

// Package auth provides credential management and token issuance.
//
// # Domain Types
//
//   - UserRecord - a stored account, including its password digest
//   - PublicUser - the sanitized projection returned to clients and embedded
//     in tokens; it has no password field
//   - Claims - the signed token payload
//
// # Services
//
// Service types coordinate domain operations:
//   - Registrar - validates a registration payload, hashes the password and
//     inserts the user
//   - Issuer - checks credentials and mints tokens
//
// Services are created with New* constructors that validate dependencies.
// UserStore implementations live in the memory, sqlite and postgres
// subpackages; all of them enforce username uniqueness atomically.
package auth
