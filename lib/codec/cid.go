// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// TagCIDLink is the CBOR tag number for IPLD CID links.
const TagCIDLink = 42

// SumCID computes the CID naming a DAG-CBOR block: CIDv1 with the
// dag-cbor codec and a sha2-256 multihash. Every block in a
// repository (MST nodes, records, commits) is addressed this way.
func SumCID(data []byte) cid.Cid {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// sha2-256 over arbitrary bytes cannot fail.
		panic("codec: multihash: " + err.Error())
	}
	return cid.NewCidV1(cid.DagCBOR, mh)
}

// SumRawCID computes the CID for a raw (non-CBOR) block, as used for
// blob content.
func SumRawCID(data []byte) cid.Cid {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		panic("codec: multihash: " + err.Error())
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// LinkTag wraps c as the CBOR tag DAG-CBOR uses for links: tag 42
// over the CID bytes with a leading identity-multibase zero byte.
func LinkTag(c cid.Cid) Tag {
	content := make([]byte, 0, len(c.Bytes())+1)
	content = append(content, 0)
	content = append(content, c.Bytes()...)
	return cbor.Tag{Number: TagCIDLink, Content: content}
}

// CIDFromLink decodes the content of a tag-42 link back into a CID.
func CIDFromLink(content []byte) (cid.Cid, error) {
	if len(content) == 0 || content[0] != 0 {
		return cid.Undef, fmt.Errorf("CID link missing identity multibase prefix")
	}
	c, err := cid.Cast(content[1:])
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid CID in link: %w", err)
	}
	return c, nil
}
