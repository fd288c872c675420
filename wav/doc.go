// Package wav reads WAV files directly from the sectors of an exFAT volume.
//
// Open walks the RIFF chunks of a file until the fmt and the data chunk are found and
// returns a File describing the sample format. The sample data is then read either
// block by block with ReadNextBlock, which is what the stream engine uses, or as
// normalized samples with ReadNextSamples.
//
// # Layout assumptions
//
// The file data is read as consecutive sectors starting at the first cluster of the file.
// The fmt chunk has to lie within the first sector and no chunk header may cross a sector
// boundary. Files written by common tools satisfy this.
//
// # Block reads
//
// ReadNextBlock returns whole sectors of the data chunk. The bytes in front of the first
// sector boundary inside the data chunk are skipped, as is the last block which would
// reach the end of the data:
//
//	f, err := wav.Open(vol, record)
//	if err != nil {
//	    // Handle error
//	}
//
//	var block blockdev.Block
//	for f.ReadNextBlock(&block) == nil {
//	    // Use block
//	}
//
// # Samples
//
// ReadNextSamples buffers up to BufferBlocks sectors into a caller provided Scratch and
// returns an iterator over the channel samples in it. Each sample is left aligned in an
// int32, so 16 and 24 bit data both use the full range. 8 bit data stays unsigned.
package wav
