package gallery

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/resource"
	"github.com/hupe1980/brec/template"
)

func memCfg(blockSize int) Config {
	return Config{BlockSize: blockSize, MemStore: NewMemStore(), Store: blobstore.NewMemoryStore()}
}

func tmpl(name string, data ...float32) template.Template {
	return template.Template{File: template.NewFile(name), Data: data}
}

func readPass(t *testing.T, g Gallery) template.List {
	t.Helper()
	var all template.List
	for {
		block, done, err := g.ReadBlock()
		require.NoError(t, err)
		if done {
			return all
		}
		all = append(all, block...)
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	_, err := Open(context.Background(), template.NewFile("subjects.xyz"), memCfg(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestMemGallery(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(2)

	g, err := Open(ctx, template.NewFile("cache.mem"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1), tmpl("b", 2), tmpl("c", 3)}))

	// Blocks respect the configured size.
	block, done, err := g.ReadBlock()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, block, 2)

	block, done, err = g.ReadBlock()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, block, 1)

	_, done, err = g.ReadBlock()
	require.NoError(t, err)
	assert.True(t, done)

	// A finished pass restarts from the beginning.
	again := readPass(t, g)
	require.Len(t, again, 3)
	assert.Equal(t, "a", again[0].File.Name)

	// Handles opened under the same name share the backing records.
	g2, err := Open(ctx, template.NewFile("cache.mem"), cfg)
	require.NoError(t, err)
	files, err := g2.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, files.Names())

	require.NoError(t, g.Close())
	require.NoError(t, g2.Close())
}

func TestGalGallery_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(4)

	failed := template.NewFile("s03.jpg")
	failed.SetBool("FTE", true)

	g, err := Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{
		tmpl("s01.jpg", 0.5, -1.5),
		tmpl("s02.jpg", 2, 4),
	}))
	require.NoError(t, g.WriteBlock(template.List{
		{File: failed},
	}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	defer g.Close()

	files, err := g.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"s01.jpg", "s02.jpg", "s03.jpg"}, files.Names())
	assert.Equal(t, 1, files.Failures())

	// Written blocks come back as the same blocks.
	block, done, err := g.ReadBlock()
	require.NoError(t, err)
	require.False(t, done)
	require.Len(t, block, 2)
	assert.Equal(t, []float32{0.5, -1.5}, block[0].Data)

	block, done, err = g.ReadBlock()
	require.NoError(t, err)
	require.False(t, done)
	require.Len(t, block, 1)
	assert.True(t, block[0].File.Failed())
	assert.Empty(t, block[0].Data)

	_, done, err = g.ReadBlock()
	require.NoError(t, err)
	assert.True(t, done)

	// The gallery is re-streamable: a second full pass sees everything.
	assert.Len(t, readPass(t, g), 3)
}

func TestGalGallery_Append(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(4)

	g, err := Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1)}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("b", 2)}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	defer g.Close()
	all := readPass(t, g)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].File.Name)
	assert.Equal(t, "b", all[1].File.Name)
}

func TestGalGallery_Missing(t *testing.T) {
	ctx := context.Background()

	g, err := Open(ctx, template.NewFile("absent.gal"), memCfg(4))
	require.NoError(t, err)
	defer g.Close()

	_, done, err := g.ReadBlock()
	require.NoError(t, err)
	assert.True(t, done)

	files, err := g.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGalGallery_ReadAfterWriteFails(t *testing.T) {
	ctx := context.Background()

	g, err := Open(ctx, template.NewFile("subjects.gal"), memCfg(4))
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1)}))
	_, _, err = g.ReadBlock()
	require.Error(t, err)
}

func TestGalGallery_LocalStore(t *testing.T) {
	ctx := context.Background()
	cfg := Config{BlockSize: 4, Store: blobstore.NewLocalStore(t.TempDir())}

	g, err := Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1, 2), tmpl("b", 3, 4)}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	defer g.Close()
	all := readPass(t, g)
	require.Len(t, all, 2)
	assert.Equal(t, []float32{3, 4}, all[1].Data)
}

func TestGalGallery_RateLimited(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(4)
	cfg.Resource = resource.NewController(resource.Config{IOLimitBytesPerSec: 64 << 20})

	g, err := Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1, 2), tmpl("b", 3, 4)}))
	require.NoError(t, g.Close())

	// Appending copies the old content through the limiter.
	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("c", 5, 6)}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	defer g.Close()
	all := readPass(t, g)
	require.Len(t, all, 3)
	assert.Equal(t, []float32{5, 6}, all[2].Data)
}

func TestTemplateSuffixAlias(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(4)

	g, err := Open(ctx, template.NewFile("probe.template"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("p", 9)}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("probe.template"), cfg)
	require.NoError(t, err)
	defer g.Close()
	all := readPass(t, g)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{9}, all[0].Data)
}

func TestFrameRoundTrip(t *testing.T) {
	// Repetitive payloads take the compressed path.
	compressible := make([]byte, 4096)
	for i := range compressible {
		compressible[i] = byte(i % 7)
	}
	frame, err := compressFrame(compressible)
	require.NoError(t, err)
	assert.NotZero(t, binary.LittleEndian.Uint32(frame[4:8]))
	assert.Less(t, len(frame), len(compressible))

	got, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, compressible, got)

	// High-entropy payloads fall back to raw storage.
	incompressible := make([]byte, 256)
	state := uint32(0x9e3779b9)
	for i := range incompressible {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		incompressible[i] = byte(state)
	}
	frame, err = compressFrame(incompressible)
	require.NoError(t, err)
	assert.Zero(t, binary.LittleEndian.Uint32(frame[4:8]))
	assert.Len(t, frame, frameHeaderSize+len(incompressible))

	got, err = readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, incompressible, got)
}

func TestCSVGallery_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(2)

	failed := template.NewFile("s2.jpg")
	failed.SetBool("FTE", true)

	g, err := Open(ctx, template.NewFile("subjects.csv"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{
		{File: template.MustParseFile("s1.jpg[Label=7]"), Data: []float32{0.25, -3}},
		{File: failed},
	}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("subjects.csv"), cfg)
	require.NoError(t, err)
	defer g.Close()

	all := readPass(t, g)
	require.Len(t, all, 2)
	assert.Equal(t, "7", all[0].File.Get("Label", ""))
	assert.Equal(t, []float32{0.25, -3}, all[0].Data)
	assert.True(t, all[1].File.Failed())
	assert.Empty(t, all[1].Data)
}

func TestTxtGallery_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(2)

	g, err := Open(ctx, template.NewFile("inputs.txt"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{
		{File: template.MustParseFile("s1.jpg[Label=1]")},
		{File: template.NewFile("s2.jpg")},
	}))
	require.NoError(t, g.Close())

	g, err = Open(ctx, template.NewFile("inputs.txt"), cfg)
	require.NoError(t, err)
	defer g.Close()

	files, err := g.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1.jpg", "s2.jpg"}, files.Names())

	all := readPass(t, g)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].File.Get("Label", ""))
	assert.Nil(t, all[0].Data)
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	cfg := memCfg(2)

	// Unregistered suffixes stand for themselves.
	list, err := ReadAll(ctx, template.MustParseFile("face.jpg[Label=3]"), cfg)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "face.jpg", list[0].File.Name)
	assert.Equal(t, "3", list[0].File.Get("Label", ""))

	// Gallery suffixes stream their full contents.
	g, err := Open(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	require.NoError(t, g.WriteBlock(template.List{tmpl("a", 1), tmpl("b", 2), tmpl("c", 3)}))
	require.NoError(t, g.Close())

	list, err = ReadAll(ctx, template.NewFile("subjects.gal"), cfg)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
