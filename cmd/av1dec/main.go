// Command av1dec decodes AV1 streams from the command line.
//
// Usage:
//
//	av1dec dec [options] <input>   Decode an IVF or raw OBU stream to planar YUV
//	av1dec info <input>            Display stream structure
//
// Input may be an IVF file (each IVF frame is one temporal unit) or a raw
// low-overhead OBU stream (temporal units split at temporal delimiters).
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/deepteams/av1"
	"github.com/deepteams/av1/internal/obu"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dec":
		err = runDec(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "av1dec: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "av1dec: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  av1dec dec [options] <input>   Decode IVF or raw OBU stream to planar YUV
  av1dec info <input>            Display stream structure

Run "av1dec dec -h" for decode options.
`)
}

// --- dec ---

func runDec(args []string) error {
	fs := flag.NewFlagSet("dec", flag.ContinueOnError)
	threads := fs.Int("threads", 1, "total thread count")
	frameParallel := fs.Bool("frame_parallel", false, "decode frames in parallel")
	allLayers := fs.Bool("all_layers", false, "output every showable layer")
	operatingPoint := fs.Int("op", 0, "operating point to decode (0-31)")
	noDeblock := fs.Bool("no_deblock", false, "disable the deblocking filter")
	noCdef := fs.Bool("no_cdef", false, "disable CDEF")
	noSuperRes := fs.Bool("no_superres", false, "disable super resolution")
	noRestoration := fs.Bool("no_restoration", false, "disable loop restoration")
	limit := fs.Int("limit", 0, "stop after this many frames (0=all)")
	output := fs.String("o", "", `output path for raw YUV planes ("-" for stdout)`)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dec: missing input file\nUsage: av1dec dec [options] <input>")
	}

	units, err := readTemporalUnits(fs.Arg(0))
	if err != nil {
		return err
	}

	var out io.Writer
	switch *output {
	case "":
	case "-":
		out = os.Stdout
	default:
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	mask := uint8(av1.MaskAllFilters)
	if *noDeblock {
		mask &^= av1.MaskDeblock
	}
	if *noCdef {
		mask &^= av1.MaskCdef
	}
	if *noSuperRes {
		mask &^= av1.MaskSuperRes
	}
	if *noRestoration {
		mask &^= av1.MaskRestoration
	}

	d := av1.NewDecoder(&av1.Settings{
		Threads:         *threads,
		FrameParallel:   *frameParallel,
		BlockingDequeue: true,
		OutputAllLayers: *allLayers,
		OperatingPoint:  *operatingPoint,
		PostFilterMask:  mask,
	})
	defer d.Close()

	decoded := 0
	dequeue := func() error {
		buf, err := d.DequeueFrame()
		if err != nil {
			return err
		}
		if buf == nil {
			return nil
		}
		decoded++
		if out != nil {
			if err := writeFrame(out, buf); err != nil {
				return err
			}
		}
		return nil
	}

	for _, tu := range units {
		for {
			err := d.EnqueueFrame(tu, nil, nil)
			if err == nil {
				break
			}
			if !errors.Is(err, av1.ErrTryAgain) {
				return err
			}
			if err := dequeue(); err != nil {
				return err
			}
		}
		if *limit > 0 && decoded >= *limit {
			break
		}
	}
	d.SignalEOS()
	for {
		if err := dequeue(); err != nil {
			if errors.Is(err, av1.ErrNothingToDequeue) {
				break
			}
			return err
		}
		if *limit > 0 && decoded >= *limit {
			break
		}
	}

	fmt.Fprintf(os.Stderr, "av1dec: %d frame(s) decoded from %d temporal unit(s)\n", decoded, len(units))
	return nil
}

// writeFrame appends one frame's planes in Y, U, V order, row by row at
// the display width.
func writeFrame(w io.Writer, buf *av1.DecoderBuffer) error {
	for plane, data := range buf.Planes {
		if data == nil {
			continue
		}
		width := buf.Width
		height := buf.Height
		if plane > 0 {
			// Chroma output is 4:2:0.
			width = (width + 1) / 2
			height = (height + 1) / 2
		}
		for y := 0; y < height; y++ {
			row := data[y*buf.Strides[plane]:]
			if _, err := w.Write(row[:width]); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- info ---

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info: missing input file")
	}
	units, err := readTemporalUnits(args[0])
	if err != nil {
		return err
	}

	totalFrames := 0
	for i, tu := range units {
		obus, err := obu.Split(tu)
		if err != nil {
			return fmt.Errorf("temporal unit %d: %w", i, err)
		}
		frames, err := obu.CountFrames(tu)
		if err != nil {
			return fmt.Errorf("temporal unit %d: %w", i, err)
		}
		totalFrames += frames
		fmt.Printf("temporal unit %d: %d byte(s), %d OBU(s), %d frame(s)\n", i, len(tu), len(obus), frames)
		for _, u := range obus {
			fmt.Printf("  %-18s %d byte(s)\n", obuTypeName(u.Header.Type), len(u.Payload))
		}
	}
	fmt.Printf("%d temporal unit(s), %d frame(s)\n", len(units), totalFrames)
	return nil
}

func obuTypeName(t int) string {
	switch t {
	case obu.TypeSequenceHeader:
		return "sequence_header"
	case obu.TypeTemporalDelimiter:
		return "temporal_delimiter"
	case obu.TypeFrameHeader:
		return "frame_header"
	case obu.TypeTileGroup:
		return "tile_group"
	case obu.TypeMetadata:
		return "metadata"
	case obu.TypeFrame:
		return "frame"
	case obu.TypePadding:
		return "padding"
	default:
		return fmt.Sprintf("reserved_%d", t)
	}
}

// --- input framing ---

var ivfMagic = [4]byte{'D', 'K', 'I', 'F'}

// readTemporalUnits loads the input and slices it into temporal units.
// IVF frames map one to one onto temporal units; a raw OBU stream is
// split at temporal delimiters.
func readTemporalUnits(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) >= 32 && [4]byte(data[:4]) == ivfMagic {
		return splitIVF(data)
	}
	return splitOBUStream(data)
}

func splitIVF(data []byte) ([][]byte, error) {
	headerSize := int(binary.LittleEndian.Uint16(data[6:8]))
	if headerSize < 32 || headerSize > len(data) {
		return nil, fmt.Errorf("ivf: bad header size %d", headerSize)
	}
	data = data[headerSize:]
	var units [][]byte
	for len(data) > 0 {
		if len(data) < 12 {
			return nil, fmt.Errorf("ivf: truncated frame header")
		}
		size := int(binary.LittleEndian.Uint32(data[0:4]))
		data = data[12:]
		if size > len(data) {
			return nil, fmt.Errorf("ivf: truncated frame payload")
		}
		units = append(units, data[:size])
		data = data[size:]
	}
	return units, nil
}

// splitOBUStream regroups a low-overhead bitstream into temporal units,
// starting a new unit at each temporal delimiter. The OBUs are
// re-serialized with size fields; extension headers are preserved.
func splitOBUStream(data []byte) ([][]byte, error) {
	obus, err := obu.Split(data)
	if err != nil {
		return nil, err
	}
	var units [][]byte
	var current []byte
	for _, u := range obus {
		if u.Header.Type == obu.TypeTemporalDelimiter && current != nil {
			units = append(units, current)
			current = nil
		}
		current = append(current, serializeOBU(u)...)
	}
	if current != nil {
		units = append(units, current)
	}
	return units, nil
}

func serializeOBU(u obu.Unit) []byte {
	b := byte(u.Header.Type << 3)
	b |= 0x02 // has_size_field
	out := []byte{b}
	if u.Header.ExtensionFlag {
		out[0] |= 0x04
		out = append(out, byte(u.Header.TemporalID<<5|u.Header.SpatialID<<3))
	}
	size := len(u.Payload)
	for {
		sb := byte(size & 0x7f)
		size >>= 7
		if size != 0 {
			sb |= 0x80
		}
		out = append(out, sb)
		if size == 0 {
			break
		}
	}
	return append(out, u.Payload...)
}
