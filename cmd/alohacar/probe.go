package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/lanikai/alohacar/internal/media/h264"
	"github.com/lanikai/alohacar/internal/media/source"
	"github.com/spf13/cobra"
)

var flagProbeCount int

var probeCmd = &cobra.Command{
	Use:   "probe FILE",
	Short: "Print framing, NAL unit types and SPS fields of an H.264 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		units, err := source.ReadAccessUnits(args[0], flagProbeCount)
		if err != nil {
			return err
		}
		probe(units)
		return nil
	},
}

func init() {
	probeCmd.Flags().IntVarP(&flagProbeCount, "count", "n", 30, "Number of access units to inspect")
}

func probe(units [][]byte) {
	key := color.New(color.FgCyan)
	warn := color.New(color.FgRed)
	idr := color.New(color.FgYellow)

	var keyframes int
	seen := map[string]bool{}
	for i, au := range units {
		s, err := h264.NewStream(au, h264.Options{})
		if err != nil || s.Framing() == h264.FramingUnknown {
			warn.Printf("%4d  %6d bytes  unknown framing\n", i, len(au))
			continue
		}

		var types []string
		for _, t := range s.Types() {
			types = append(types, t.String())
		}
		line := fmt.Sprintf("%4d  %6d bytes  %v/%d  %s", i, len(au), s.Framing(), s.BoxSize(), strings.Join(types, " "))
		if s.IsKeyFrame() {
			keyframes++
			idr.Println(line)
		} else {
			fmt.Println(line)
		}

		nalu, ok := s.Find(h264.TypeSPS)
		if !ok || seen[string(nalu)] {
			continue
		}
		seen[string(nalu)] = true
		sps, err := h264.ParseSPS(nalu)
		if err != nil {
			warn.Printf("      SPS: %v\n", err)
			continue
		}
		field := func(name string, value interface{}) {
			key.Printf("      %-18s", name)
			fmt.Println(value)
		}
		field("codec", sps.MIME())
		field("profile", sps.Profile)
		field("level", fmt.Sprintf("%d.%d", sps.Level/10, sps.Level%10))
		field("coded size", fmt.Sprintf("%dx%d", sps.PicWidth, sps.PicHeight))
		field("display size", fmt.Sprintf("%dx%d", sps.Width(), sps.Height()))
		field("chroma format", sps.ChromaFormatIDC)
		field("bit depth", sps.BitDepthLuma)
		field("frame mbs only", sps.FrameMbsOnly)
		field("ref frames", sps.MaxNumRefFrames)
		if num, den := sps.SampleAspectRatio(); num > 0 {
			field("sample aspect", fmt.Sprintf("%d:%d", num, den))
		}
		if sps.FramesPerSecond > 0 {
			field("frame rate", fmt.Sprintf("%.3f", sps.FramesPerSecond))
		}
	}
	fmt.Printf("%d access units, %d keyframes\n", len(units), keyframes)
}
