// Package stride implements the pure byte-level transforms that
// interleave and deinterleave the `required` principal sub-streams
// within a contiguous buffer: CopyNthElement (strided pick),
// Distribute (strided scatter, the transpose of CopyNthElement across
// `chunks` sub-ranges at once) and CopyToNthElement (strided write,
// used by the decoder to reinterleave).
//
// These generalize the even/odd byte splitting done by a 2-way RAID
// stripe (SplitBytes/MergeBytes/CalculateParity for the required=2
// special case) to an arbitrary stride.
package stride

// CopyNthElement copies in[0], in[stride], in[2*stride], ... into
// consecutive positions of out, for as long as the source index stays
// below len(in). It returns the number of bytes written.
func CopyNthElement(out []byte, in []byte, stride int) int {
	n := 0
	for i := 0; i < len(in); i += stride {
		out[n] = in[i]
		n++
	}
	return n
}

// Distribute is the transpose of CopyNthElement across chunks
// sub-ranges: it requires len(in) is a multiple of chunks, and writes,
// for each i in [0, chunks), in[i], in[i+chunks], in[i+2*chunks], ...
// into the contiguous sub-range out[i*chunkSize : (i+1)*chunkSize].
// This converts `chunks` interleaved sub-streams into `chunks`
// contiguous blocks suitable as FEC input.
func Distribute(out []byte, in []byte, chunks int) {
	if len(in)%chunks != 0 {
		panic("stride: Distribute requires len(in) a multiple of chunks")
	}
	chunkSize := len(in) / chunks
	for i := 0; i < chunks; i++ {
		CopyNthElement(out[i*chunkSize:(i+1)*chunkSize], in[i:], chunks)
	}
}

// CopyToNthElement is the decoder-side counterpart used when
// reinterleaving a reconstructed principal sub-stream back into the
// plaintext layout: it writes in[0], in[1], ... into out[startOut],
// out[startOut+stride], out[startOut+2*stride], ... until startOut
// reaches len(out). startOut may be negative-relative-to-zero in the
// sense that callers wrap it into [0, stride) beforehand (the caller
// handles the "earlier position already emitted" modular wrap described
// in the decoder's offset-correction step); here it is taken as given.
func CopyToNthElement(out []byte, startOut int, in []byte, stride int) {
	n := 0
	for i := startOut; i < len(out); i += stride {
		out[i] = in[n]
		n++
	}
}
