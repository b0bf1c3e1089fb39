// Package codec defines the boundary between the server and the
// file-format encoders/decoders (txt/tsv/xlsx/xls/xml/tmx) that read and
// write file bodies. The encoders/decoders themselves are an external
// collaborator: this package only fixes the interface a concrete codec
// must satisfy and the registry handlers use to look one up by format,
// the same "external collaborator, specified only at its interface"
// treatment the embedding model gets in pkg/tm.
package codec

import (
	"io"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// Row is one decoded source/target pair, ahead of being assigned a
// types.Row ID and file association.
type Row struct {
	Index    int
	Source   string
	Target   string
	StringID string
	Metadata map[string]string
}

// Codec decodes a file body into Rows and encodes Rows back into a file
// body of the same format. Implementations must preserve "<br/>" byte
// for byte on every round trip — it is literal markup in this domain's
// file formats, never a newline.
type Codec interface {
	Format() types.FileFormat
	Decode(r io.Reader) ([]Row, error)
	Encode(w io.Writer, rows []Row) error
}

// Registry looks codecs up by format. The zero value has none
// registered; callers get a NotFound error until a concrete codec is
// wired in, which is the correct behavior for a boundary type with no
// implementation in this tree.
type Registry struct {
	codecs map[types.FileFormat]Codec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[types.FileFormat]Codec)}
}

// Register installs c under its own Format(), overwriting any previous
// registration for that format.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Format()] = c
}

// Get returns the codec registered for format, or a NotFound error.
func (r *Registry) Get(format types.FileFormat) (Codec, error) {
	c, ok := r.codecs[format]
	if !ok {
		return nil, errs.New(errs.NotFound, "no codec registered for format "+string(format))
	}
	return c, nil
}
