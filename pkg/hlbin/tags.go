package hlbin

import "github.com/oisee/hlbc/pkg/hlir"

// Wire tags (spec §6.2). Tag 19 is reserved and unused. Call3 does not
// appear in the source table at all — the source reuses Call2's tag 12,
// a known bug (spec §9 "Open questions"). This implementation picks a
// fresh tag, 28, rather than perpetuate the collision.
const (
	tagMov        = 0
	tagIntU8      = 1
	tagIntI32     = 2
	tagFloat      = 3
	tagBoolTrue   = 4
	tagBoolFalse  = 5
	tagAdd        = 6
	tagSub        = 7
	tagIncr       = 8
	tagDecr       = 9
	tagCall0      = 10
	tagCall1      = 11
	tagCall2      = 12
	tagCallN      = 13
	tagGetGlobal  = 14
	tagSetGlobal  = 15
	tagEq         = 16
	tagNotEq      = 17
	tagLt         = 18
	// 19 reserved
	tagGte        = 20
	tagRet        = 21
	tagJTrue      = 22
	tagJFalse     = 23
	tagJNull      = 24
	tagJNotNull   = 25
	tagJAlways    = 26
	tagToAny      = 27
	tagCall3      = 28
)

// binaryFormTag holds the opcodes that use the compact-or-long register
// encoding of spec §4.6 ("Binary-form opcodes: Add, Sub, Eq, NotEq, Lt,
// Gte").
var binaryFormTag = map[hlir.Op]byte{
	hlir.OpAdd:   tagAdd,
	hlir.OpSub:   tagSub,
	hlir.OpEq:    tagEq,
	hlir.OpNotEq: tagNotEq,
	hlir.OpLt:    tagLt,
	hlir.OpGte:   tagGte,
}

var tagToBinaryOp = map[byte]hlir.Op{
	tagAdd:   hlir.OpAdd,
	tagSub:   hlir.OpSub,
	tagEq:    hlir.OpEq,
	tagNotEq: hlir.OpNotEq,
	tagLt:    hlir.OpLt,
	tagGte:   hlir.OpGte,
}

// typeTag maps a Kind to its on-wire type-record tag (spec §6.1: "one
// byte tag (0..7)"), which is identical to the Kind ordering in spec §3.1.
func typeTag(k hlir.Kind) byte { return byte(k) }
