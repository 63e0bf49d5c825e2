package pluginloader

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// bytecodeMagic is the 4-byte preamble every .fzb container must start
// with (spec.md §4.2).
var bytecodeMagic = [4]byte{'F', 'Z', 'B', 0x01}

// BytecodeMetadata is the fixed-layout record immediately following the
// magic preamble. The constant pool, function descriptors, and
// instruction stream that follow are opaque to the core (spec.md §4.2:
// "the instruction set itself is out of scope").
type BytecodeMetadata struct {
	PluginID       string
	PluginVersion  string
	CompiledAt     time.Time
	CompilerVersion string
}

const (
	metaPluginIDLen      = 64
	metaPluginVersionLen = 32
	metaCompilerVerLen   = 32
)

// ReadBytecodeMetadata validates the magic preamble and decodes the
// fixed-size metadata record from an .fzb file, without touching the
// constant pool or instruction stream.
func ReadBytecodeMetadata(path string) (BytecodeMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return BytecodeMetadata{}, errors.Wrapf(err, "opening bytecode %s", path)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return BytecodeMetadata{}, errors.Wrapf(err, "reading magic from %s", path)
	}
	if magic != bytecodeMagic {
		return BytecodeMetadata{}, errors.Errorf("bytecode %s: bad magic %x, want %x", path, magic, bytecodeMagic)
	}

	idBuf := make([]byte, metaPluginIDLen)
	if _, err := io.ReadFull(f, idBuf); err != nil {
		return BytecodeMetadata{}, errors.Wrap(err, "reading plugin id field")
	}
	versionBuf := make([]byte, metaPluginVersionLen)
	if _, err := io.ReadFull(f, versionBuf); err != nil {
		return BytecodeMetadata{}, errors.Wrap(err, "reading plugin version field")
	}

	var compiledAtUnix int64
	if err := binary.Read(f, binary.LittleEndian, &compiledAtUnix); err != nil {
		return BytecodeMetadata{}, errors.Wrap(err, "reading compiled-at timestamp")
	}

	compilerBuf := make([]byte, metaCompilerVerLen)
	if _, err := io.ReadFull(f, compilerBuf); err != nil {
		return BytecodeMetadata{}, errors.Wrap(err, "reading compiler version field")
	}

	return BytecodeMetadata{
		PluginID:        trimNul(idBuf),
		PluginVersion:   trimNul(versionBuf),
		CompiledAt:      time.Unix(compiledAtUnix, 0).UTC(),
		CompilerVersion: trimNul(compilerBuf),
	}, nil
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
