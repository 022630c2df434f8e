// Package trailer implements the binary trailer format that turns an
// ordinary executable into a self-extracting model carrier. The trailer is a
// fixed 25-byte record appended after the model payload:
//
//	[executable bytes][model bytes][8-byte magic][8-byte LE offset][8-byte LE size][1-byte family]
//
// Offset is the byte length of the original executable, size is the model
// byte length. Decoding never loads the whole file: it reads the trailing
// 25 bytes from a seek handle and, on a match, the payload range on demand.
package trailer

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Magic is the 8-byte ASCII marker that identifies a trailer.
const Magic = "WHYMODEL"

// Size is the fixed byte length of an encoded trailer.
const Size = 25

// Family identifies the prompt-template convention the embedded model
// expects. Unknown bytes decode as FamilyQwen so future families stay
// readable by older binaries.
type Family byte

const (
	// FamilyQwen uses the ChatML turn format. Default family.
	FamilyQwen Family = 0
	// FamilyGemma uses the Gemma start_of_turn format.
	FamilyGemma Family = 1
	// FamilySmolLM uses the ChatML turn format.
	FamilySmolLM Family = 2
)

// String returns the family name used in user-facing output.
func (f Family) String() string {
	switch f {
	case FamilyQwen:
		return "qwen"
	case FamilyGemma:
		return "gemma"
	case FamilySmolLM:
		return "smollm"
	}
	return fmt.Sprintf("family(%d)", byte(f))
}

// ParseFamily maps a family name to its tag. Used by the --template flag.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "qwen":
		return FamilyQwen, nil
	case "gemma":
		return FamilyGemma, nil
	case "smollm":
		return FamilySmolLM, nil
	}
	return FamilyQwen, fmt.Errorf("unknown model family %q (valid: qwen, gemma, smollm)", s)
}

// Trailer is the decoded self-extraction record.
type Trailer struct {
	// Offset is the byte position of the model payload, equal to the
	// length of the original executable.
	Offset uint64
	// ModelSize is the byte length of the model payload.
	ModelSize uint64
	// Family is the model's prompt-template family.
	Family Family
}

// Encode appends model and a trailer to binary, producing a combined
// self-carrying executable image.
func Encode(binaryBytes, modelBytes []byte, fam Family) []byte {
	out := make([]byte, 0, len(binaryBytes)+len(modelBytes)+Size)
	out = append(out, binaryBytes...)
	out = append(out, modelBytes...)

	var rec [Size]byte
	copy(rec[0:8], Magic)
	binary.LittleEndian.PutUint64(rec[8:16], uint64(len(binaryBytes)))
	binary.LittleEndian.PutUint64(rec[16:24], uint64(len(modelBytes)))
	rec[24] = byte(fam)
	return append(out, rec[:]...)
}

// Decode reads the trailing 25 bytes of r. It returns (nil, nil) when the
// file is too short or the magic does not match — absence of a trailer is a
// condition, not an error. An unknown family byte maps to FamilyQwen with a
// diagnostic on stderr.
func Decode(r io.ReadSeeker) (*Trailer, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seeking trailer: %w", err)
	}
	if end < Size {
		return nil, nil
	}
	if _, err := r.Seek(-Size, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("seeking trailer: %w", err)
	}

	var rec [Size]byte
	if _, err := io.ReadFull(r, rec[:]); err != nil {
		return nil, fmt.Errorf("reading trailer: %w", err)
	}
	if string(rec[0:8]) != Magic {
		return nil, nil
	}

	t := &Trailer{
		Offset:    binary.LittleEndian.Uint64(rec[8:16]),
		ModelSize: binary.LittleEndian.Uint64(rec[16:24]),
	}
	switch fam := Family(rec[24]); fam {
	case FamilyQwen, FamilyGemma, FamilySmolLM:
		t.Family = fam
	default:
		fmt.Fprintf(os.Stderr, "warning: unknown model family tag %d, assuming qwen\n", rec[24])
		t.Family = FamilyQwen
	}
	return t, nil
}

// ExtractTo copies the model payload described by t from r into w.
func ExtractTo(w io.Writer, r io.ReadSeeker, t *Trailer) error {
	if _, err := r.Seek(int64(t.Offset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking model payload: %w", err)
	}
	if _, err := io.CopyN(w, r, int64(t.ModelSize)); err != nil {
		return fmt.Errorf("copying model payload: %w", err)
	}
	return nil
}
