package settings

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Header identifies version 0 of the settings layout.
const Header = "EGSAVE0"

// maxHeaderLen bounds the length prefix read from disk.
const maxHeaderLen = 256

// Encode writes s in the fixed binary layout: a 7-bit length prefixed UTF-8
// header followed by little-endian fields.
func Encode(w io.Writer, s Settings) error {
	bw := bufio.NewWriter(w)
	if err := writeString(bw, Header); err != nil {
		return err
	}

	fields := []any{
		s.DebugMode,
		s.ParticlesEnabled,
		s.ParticleColor.R,
		s.ParticleColor.G,
		s.ParticleColor.B,
		s.ParticleColor.A,
		s.ParticleAlphaPower,
		s.SkidmarksEnabled,
		s.EffectStrength,
	}
	for _, f := range fields {
		if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads settings written by Encode. On any error the returned
// settings are the defaults.
func Decode(r io.Reader) (Settings, error) {
	br := bufio.NewReader(r)

	header, err := readString(br)
	if err != nil {
		return Defaults(), fmt.Errorf("reading header: %w", err)
	}
	if header != Header {
		return Defaults(), fmt.Errorf("%q: %w", header, ErrUnknownHeader)
	}

	var s Settings
	fields := []any{
		&s.DebugMode,
		&s.ParticlesEnabled,
		&s.ParticleColor.R,
		&s.ParticleColor.G,
		&s.ParticleColor.B,
		&s.ParticleColor.A,
		&s.ParticleAlphaPower,
		&s.SkidmarksEnabled,
		&s.EffectStrength,
	}
	for i, f := range fields {
		if err := binary.Read(br, binary.LittleEndian, f); err != nil {
			return Defaults(), fmt.Errorf("reading field %d: %w", i, err)
		}
	}

	if !finite32(s.ParticleAlphaPower) || s.ParticleAlphaPower < 0 {
		s.ParticleAlphaPower = Defaults().ParticleAlphaPower
	}
	s.EffectStrength = clampStrength(s.EffectStrength)
	return s, nil
}

func writeString(w io.ByteWriter, s string) error {
	n := uint32(len(s))
	for n >= 0x80 {
		if err := w.WriteByte(byte(n) | 0x80); err != nil {
			return err
		}
		n >>= 7
	}
	if err := w.WriteByte(byte(n)); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if err := w.WriteByte(s[i]); err != nil {
			return err
		}
	}
	return nil
}

func readString(r *bufio.Reader) (string, error) {
	var n uint32
	for shift := uint(0); ; shift += 7 {
		if shift >= 35 {
			return "", fmt.Errorf("bad string length prefix")
		}
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		n |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
	}
	if n > maxHeaderLen {
		return "", fmt.Errorf("string length %d too long", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("header is not UTF-8")
	}
	return string(buf), nil
}

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
