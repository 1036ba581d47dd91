package hllower

import "github.com/oisee/hlbc/pkg/hlir"

// Patch is a forward reference to a jump opcode whose target is not yet
// known at emission time. It carries only the site index: the opcode's
// Delta field holds a sentinel until patch() resolves it (spec §9 "small
// Patch token... avoids interior aliasing").
type Patch struct {
	site int
}

// emitJump appends a jump opcode with a sentinel delta and returns a Patch
// that must later be resolved with patch().
func (fs *funcState) emitJump(op hlir.Op, r hlir.RegId) Patch {
	site := len(fs.fn.Code)
	fs.fn.Code = append(fs.fn.Code, hlir.Opcode{Op: op, R: r, Delta: 0x7fffffff})
	return Patch{site: site}
}

// patch writes targetIndex - (siteIndex + 1) into the jump's Delta field,
// per the forward-jump-patching rule in spec §4.3: "all jumps are relative
// to the instruction after the jump".
func (fs *funcState) patch(p Patch, target int) {
	fs.fn.Code[p.site].Delta = int32(target - (p.site + 1))
}

// here returns the index the next emitted instruction will occupy.
func (fs *funcState) here() int { return len(fs.fn.Code) }
