package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // raw snapshots may arrive as JPEG
	"image/png"
	"io"
	"path"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/gridcap/capture"
	"github.com/justapithecus/gridcap/iox"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/types"
)

// Layout holds the key prefixes for each kind of output.
type Layout struct {
	RawPrefix      string
	CroppedPrefix  string
	ManifestPrefix string
}

// DefaultLayout matches the directory names the extraction tooling has
// always used.
func DefaultLayout() Layout {
	return Layout{
		RawPrefix:      "raw",
		CroppedPrefix:  "cropped",
		ManifestPrefix: "manifests",
	}
}

// ErrCropOutOfBounds is returned when a crop box leaves the snapshot.
var ErrCropOutOfBounds = errors.New("crop box outside snapshot bounds")

// Persister writes snapshots, tiles and page manifests to a Store.
type Persister struct {
	store     lode.Store
	layout    Layout
	collector *metrics.Collector
}

// NewPersister creates a persister. A nil collector disables metrics.
func NewPersister(store lode.Store, layout Layout, collector *metrics.Collector) *Persister {
	return &Persister{
		store:     store,
		layout:    layout,
		collector: collector,
	}
}

// RawPath returns the key of the raw snapshot for page.
func (p *Persister) RawPath(page int) string {
	return path.Join(p.layout.RawPrefix, fmt.Sprintf("page-%d.png", page))
}

// TilePath returns the key of the tile named name.
func (p *Persister) TilePath(name string) string {
	return path.Join(p.layout.CroppedPrefix, name+".png")
}

// ManifestPath returns the key of the manifest for page.
func (p *Persister) ManifestPath(page int) string {
	return path.Join(p.layout.ManifestPrefix, fmt.Sprintf("page-%d.msgpack", page))
}

// SaveRaw writes the full snapshot for page, replacing any previous one.
// Non-PNG captures (JPEG) are re-encoded so the stored bytes match the
// .png key.
func (p *Persister) SaveRaw(ctx context.Context, page int, raw []byte) (string, error) {
	key := p.RawPath(page)
	data, err := asPNG(raw)
	if err != nil {
		return "", fmt.Errorf("raw snapshot for page %d: %w", page, err)
	}
	if err := p.put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// SaveTile crops snap to box and writes it as PNG under name.
// A tile with the same name is overwritten.
func (p *Persister) SaveTile(ctx context.Context, name string, snap *capture.Snapshot, box types.BoundingBox) (string, error) {
	tile, err := Crop(snap.Image, box)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, tile); err != nil {
		return "", fmt.Errorf("encode tile %s: %w", name, err)
	}

	key := p.TilePath(name)
	if err := p.put(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	return key, nil
}

// SaveReport writes the page manifest for report.Page.
func (p *Persister) SaveReport(ctx context.Context, report *types.PageReport) error {
	data, err := EncodeManifest(report)
	if err != nil {
		return err
	}
	return p.put(ctx, p.ManifestPath(report.Page), data)
}

// LoadReport reads the manifest for page.
func (p *Persister) LoadReport(ctx context.Context, page int) (*types.PageReport, error) {
	key := p.ManifestPath(page)
	rc, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, WrapReadError(err, key)
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, key)
	}
	return DecodeManifest(data)
}

// ListReports returns the page numbers that have a manifest, ascending.
func (p *Persister) ListReports(ctx context.Context) ([]int, error) {
	keys, err := p.store.List(ctx, p.layout.ManifestPrefix)
	if err != nil {
		return nil, WrapReadError(err, p.layout.ManifestPrefix)
	}
	return manifestPages(keys), nil
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// asPNG returns raw unchanged when it is already a PNG stream and
// re-encodes any other decodable image.
func asPNG(raw []byte) ([]byte, error) {
	if bytes.HasPrefix(raw, pngSignature) {
		return raw, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// put writes data at key with overwrite semantics.
func (p *Persister) put(ctx context.Context, key string, data []byte) error {
	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		p.collector.IncStorageWriteFailure()
		return WrapReadError(err, key)
	}
	if exists {
		if err := p.store.Delete(ctx, key); err != nil {
			p.collector.IncStorageWriteFailure()
			return WrapDeleteError(err, key)
		}
	}
	if err := p.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		p.collector.IncStorageWriteFailure()
		return WrapWriteError(err, key)
	}
	p.collector.IncStorageWriteSuccess()
	return nil
}

// Crop copies the box region of img into a new image anchored at (0,0).
// Box coordinates are relative to img's bounds origin.
func Crop(img image.Image, box types.BoundingBox) (image.Image, error) {
	if img == nil {
		return nil, errors.New("crop: nil image")
	}
	b := img.Bounds()
	if !box.Within(b.Dx(), b.Dy()) || box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("%w: box %s, image %dx%d", ErrCropOutOfBounds, box, b.Dx(), b.Dy())
	}

	src := image.Rect(
		b.Min.X+box.Left,
		b.Min.Y+box.Top,
		b.Min.X+box.Right(),
		b.Min.Y+box.Bottom(),
	)
	dst := image.NewNRGBA(image.Rect(0, 0, box.Width, box.Height))
	draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	return dst, nil
}
