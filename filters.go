package gamearchive

import (
	"io"

	"golang.org/x/text/transform"

	"github.com/retrodos/gamearchive/filter"
	"github.com/retrodos/gamearchive/stream"
)

// filterEntry is the catalogue record for one codec pair. dec/enc
// build fresh codec instances per application; enc may be nil for
// filters whose compression side is not implemented.
type filterEntry struct {
	code  string
	name  string
	games []string
	dec   func() stream.Codec
	enc   func() stream.Codec
}

func (f *filterEntry) Code() string         { return f.code }
func (f *filterEntry) FriendlyName() string { return f.name }
func (f *filterEntry) Games() []string      { return f.games }

func (f *filterEntry) Apply(target stream.Stream, resize stream.NotifyPrefiltered) (stream.Stream, error) {
	var dec, enc stream.Codec
	if f.dec != nil {
		dec = f.dec()
	}
	if f.enc != nil {
		enc = f.enc()
	}
	return stream.NewFiltered(target, dec, enc, resize)
}

func (f *filterEntry) ApplyRead(target stream.ReadStream) (io.Reader, error) {
	var dec stream.Codec
	if f.dec != nil {
		dec = f.dec()
	}
	return stream.NewFilteredReader(target, dec), nil
}

// chainCodec runs several codecs in sequence as one.
type chainCodec struct {
	transform.Transformer
	parts []stream.Codec
}

func chain(parts ...stream.Codec) stream.Codec {
	ts := make([]transform.Transformer, len(parts))
	for i, p := range parts {
		ts[i] = p
	}
	return &chainCodec{Transformer: transform.Chain(ts...), parts: parts}
}

func (c *chainCodec) ResetSize(decodedLen int64) {
	for _, p := range c.parts {
		p.ResetSize(decodedLen)
	}
	c.Transformer.Reset()
}

// The Monster Bash LZW dials; the RLE layer sits on top of it. The
// compressor shares codeword 256 between dictionary reset and EOF,
// so the decompressor treats 256 purely as a reset and relies on the
// bitstream ending to stop.
var lzwBashDecodeParams = filter.LZWParams{
	InitBits:  9,
	MaxBits:   12,
	FirstCode: 257,
	ResetCode: 256, // doubles as the EOF marker
	Flags:     filter.LZWResetParamValid,
}

var lzwBashEncodeParams = filter.LZWParams{
	InitBits:  9,
	MaxBits:   12,
	FirstCode: 257,
	EOFCode:   256, // EOF codeword is first codeword
	ResetCode: 256, // reset codeword is shared with EOF
	Flags:     filter.LZWEOFParamValid | filter.LZWResetParamValid,
}

// The East Point Software dials: big-endian packing, codewords grow
// to 14 bits and stay wide across dictionary resets, with EOF at the
// top of the space and reset one below it.
var lzwEPFSParams = filter.LZWParams{
	InitBits:  9,
	MaxBits:   14,
	FirstCode: 256,
	EOFCode:   0,
	ResetCode: -1,
	Flags: filter.LZWBigEndian | filter.LZWNoBitsizeReset |
		filter.LZWEOFParamValid | filter.LZWResetParamValid,
}

// The Stellar 7 dials: no EOF codeword, reset at 256, and the
// bitstream realigns to a byte boundary on every dictionary reset.
var lzwStellar7Params = filter.LZWParams{
	InitBits:  9,
	MaxBits:   12,
	FirstCode: 257,
	ResetCode: 256,
	Flags:     filter.LZWResetParamValid | filter.LZWFlushOnReset,
}

// Key for Raptor .GLB files, and the cipher block covering one FAT
// entry.
const (
	glbKey      = "32768GLB"
	glbBlockLen = 28
)

func init() {
	RegisterFilter(&filterEntry{
		code:  "rle-bash",
		name:  "Monster Bash RLE",
		games: []string{"Monster Bash"},
		dec:   func() stream.Codec { return &filter.BashUnRLE{} },
		enc:   func() stream.Codec { return &filter.BashRLE{} },
	})
	RegisterFilter(&filterEntry{
		code:  "lzw-bash",
		name:  "Monster Bash compression",
		games: []string{"Monster Bash"},
		dec: func() stream.Codec {
			return chain(filter.NewLZWDecode(lzwBashDecodeParams), &filter.BashUnRLE{})
		},
		enc: func() stream.Codec {
			return chain(&filter.BashRLE{}, filter.NewLZWEncode(lzwBashEncodeParams))
		},
	})
	RegisterFilter(&filterEntry{
		code:  "rle-ddave",
		name:  "Dangerous Dave RLE",
		games: []string{"Dangerous Dave"},
		dec:   func() stream.Codec { return &filter.DDaveUnRLE{} },
		enc:   func() stream.Codec { return &filter.DDaveRLE{} },
	})
	RegisterFilter(&filterEntry{
		code: "lzw-epfs",
		name: "East Point Software EPFS compression",
		games: []string{
			"Alien Breed Tower Assault", "Arcade Pool", "Jungle Book, The",
			"Lion King, The", "Overdrive", "Project X", "Sensible Golf",
			"Smurfs, The", "Spirou", "Tin Tin in Tibet", "Universe",
		},
		dec: func() stream.Codec { return filter.NewLZWDecode(lzwEPFSParams) },
		enc: func() stream.Codec { return filter.NewLZWEncode(lzwEPFSParams) },
	})
	RegisterFilter(&filterEntry{
		code:  "lzw-stellar7",
		name:  "Stellar 7 compression",
		games: []string{"Stellar 7"},
		dec:   func() stream.Codec { return filter.NewLZWDecode(lzwStellar7Params) },
		enc:   func() stream.Codec { return filter.NewLZWEncode(lzwStellar7Params) },
	})
	RegisterFilter(&filterEntry{
		code:  "lzss-got",
		name:  "God of Thunder compression",
		games: []string{"God of Thunder"},
		dec:   func() stream.Codec { return &filter.GotUnLZSS{} },
		enc:   func() stream.Codec { return &filter.GotLZSS{} },
	})
	RegisterFilter(&filterEntry{
		code:  "lzs-skyroads",
		name:  "SkyRoads compression",
		games: []string{"SkyRoads"},
		dec:   func() stream.Codec { return &filter.SkyRoadsUnLZS{} },
		enc:   func() stream.Codec { return &filter.SkyRoadsLZS{} },
	})
	RegisterFilter(&filterEntry{
		code:  "bpe-stargunner",
		name:  "Stargunner compression",
		games: []string{"Stargunner"},
		dec:   func() stream.Codec { return &filter.StargunnerDecode{} },
		// No encoder is known for this scheme; writes fail on flush.
	})
	RegisterFilter(&filterEntry{
		code:  "lzw-zone66",
		name:  "Zone 66 compression",
		games: []string{"Zone 66"},
		dec:   func() stream.Codec { return &filter.Zone66Decode{} },
		enc:   func() stream.Codec { return &filter.Zone66Encode{} },
	})
	RegisterFilter(&filterEntry{
		code:  "glb-raptor-fat",
		name:  "Raptor GLB FAT encryption",
		games: []string{"Raptor"},
		dec:   func() stream.Codec { return filter.NewAddDecrypt(glbKey, glbBlockLen) },
		enc:   func() stream.Codec { return filter.NewAddEncrypt(glbKey, glbBlockLen) },
	})
	RegisterFilter(&filterEntry{
		code:  "glb-raptor",
		name:  "Raptor GLB file encryption",
		games: []string{"Raptor"},
		dec:   func() stream.Codec { return filter.NewAddDecrypt(glbKey, 0) },
		enc:   func() stream.Codec { return filter.NewAddEncrypt(glbKey, 0) },
	})
	RegisterFilter(&filterEntry{
		code:  "xor",
		name:  "Generic XOR encryption",
		games: nil,
		dec:   func() stream.Codec { return &filter.XOR{Step: 1} },
		enc:   func() stream.Codec { return &filter.XOR{Step: 1} },
	})
	RegisterFilter(&filterEntry{
		code:  "xor-blood",
		name:  "Blood RFF file encryption",
		games: []string{"Blood"},
		dec:   func() stream.Codec { return filter.NewRFFFileCipher() },
		enc:   func() stream.Codec { return filter.NewRFFFileCipher() },
	})
}
