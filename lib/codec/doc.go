// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic DAG-CBOR encoding and
// decoding, the block serialization used throughout the repository
// layer and the firehose.
//
// The encoder follows the IPLD DAG-CBOR profile: RFC 7049 canonical
// map key ordering (length first, then bytewise), smallest-form
// integers, no indefinite-length items, and CID links as tag 42 over
// the identity-multibase-prefixed CID bytes. Encoding the same
// logical data always produces identical bytes, which is what makes
// content addressing by CID meaningful.
package codec
