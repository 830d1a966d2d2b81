// Package snapshot periodically archives the portal's tables so the
// database can be recovered if the live file is lost or overwritten.
package snapshot

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/campusdocs/portal/internal/pkg/blob"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	archivePrefix  = "snapshot-"
	archiveExt     = ".zip"
	archiveLayout  = "20060102-150405.000000"
	manifestFile   = "manifest.json"
	dataDir        = "db"
	snapshotFormat = "portal-snapshot"
	formatVersion  = 1
)

// tables lists what a snapshot contains, with columns left out of each.
var tables = []struct {
	name string
	omit []string
}{
	{name: "users", omit: []string{"password"}},
	{name: "file_records"},
	{name: "delivery_logs"},
}

type Manifest struct {
	Format    string           `json:"format"`
	Version   int              `json:"version"`
	Engine    string           `json:"engine"`
	CreatedAt time.Time        `json:"created_at"`
	Tables    []string         `json:"tables"`
	Rows      map[string]int64 `json:"rows"`
}

// Item is one stored archive.
type Item struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	db     *gorm.DB
	store  blob.Store
	prefix string
	keep   int
	logger *zap.Logger
	now    func() time.Time
}

// NewService stores archives in store under keyPrefix and keeps the newest
// keep of them. keep <= 0 keeps everything.
func NewService(db *gorm.DB, store blob.Store, keyPrefix string, keep int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     db,
		store:  store,
		prefix: keyPrefix,
		keep:   keep,
		logger: logger.Named("Snapshot"),
		now:    time.Now,
	}
}

// Create writes a new archive and prunes old ones.
func (s *Service) Create(ctx context.Context) (*Item, error) {
	now := s.now().UTC()
	buf, manifest, err := s.build(ctx, now)
	if err != nil {
		return nil, err
	}
	name := archivePrefix + now.Format(archiveLayout) + archiveExt
	size := int64(buf.Len())
	if err := s.store.Put(ctx, s.prefix+name, buf, size, "application/zip"); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.Info("snapshot created", zap.String("name", name), zap.Int64("size", size), zap.Any("rows", manifest.Rows))

	if err := s.prune(ctx); err != nil {
		s.logger.Warn("prune snapshots failed", zap.Error(err))
	}
	return &Item{Name: name, Size: size, CreatedAt: now}, nil
}

func (s *Service) build(ctx context.Context, now time.Time) (*bytes.Buffer, *Manifest, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	manifest := &Manifest{
		Format:    snapshotFormat,
		Version:   formatVersion,
		Engine:    s.db.Dialector.Name(),
		CreatedAt: now,
		Rows:      make(map[string]int64, len(tables)),
	}

	for _, t := range tables {
		var rows []map[string]interface{}
		if err := s.db.WithContext(ctx).Table(t.name).Find(&rows).Error; err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", t.name, err)
		}
		for _, row := range rows {
			for _, col := range t.omit {
				delete(row, col)
			}
		}
		payload, err := encodeBSONRows(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s: %w", t.name, err)
		}
		f, err := w.Create(path.Join(dataDir, t.name+".bson"))
		if err != nil {
			return nil, nil, err
		}
		if _, err := f.Write(payload); err != nil {
			return nil, nil, err
		}
		manifest.Tables = append(manifest.Tables, t.name)
		manifest.Rows[t.name] = int64(len(rows))
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, nil, err
	}
	mf, err := w.Create(manifestFile)
	if err != nil {
		return nil, nil, err
	}
	if _, err := mf.Write(data); err != nil {
		return nil, nil, err
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}
	return buf, manifest, nil
}

// List returns stored archives, newest first.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	objects, err := s.store.List(ctx, s.prefix+archivePrefix)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, s.prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		created, err := time.Parse(archiveLayout, strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveExt))
		if err != nil {
			created = obj.ModTime
		}
		items = append(items, Item{Name: name, Size: obj.Size, CreatedAt: created})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name > items[j].Name })
	return items, nil
}

// Open returns the archive called name.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, *blob.Object, error) {
	if !validName(name) {
		return nil, nil, blob.ErrNotFound
	}
	return s.store.Open(ctx, s.prefix+name)
}

func (s *Service) prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, item := range items[min(s.keep, len(items)):] {
		if err := s.store.Delete(ctx, s.prefix+item.Name); err != nil {
			return err
		}
		s.logger.Debug("snapshot pruned", zap.String("name", item.Name))
	}
	return nil
}

func validName(name string) bool {
	return strings.HasPrefix(name, archivePrefix) &&
		strings.HasSuffix(name, archiveExt) &&
		!strings.ContainsAny(name, `/\`)
}

// ReadArchive decodes an archive produced by Create.
func ReadArchive(r io.ReaderAt, size int64) (*Manifest, map[string][]map[string]interface{}, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, err
	}
	var manifest *Manifest
	data := make(map[string][]map[string]interface{})
	for _, f := range zr.File {
		raw, err := readZipFile(f)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case f.Name == manifestFile:
			manifest = &Manifest{}
			if err := json.Unmarshal(raw, manifest); err != nil {
				return nil, nil, fmt.Errorf("decode manifest: %w", err)
			}
		case strings.HasSuffix(f.Name, ".bson"):
			rows, err := decodeBSONRows(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("decode %s: %w", f.Name, err)
			}
			data[strings.TrimSuffix(path.Base(f.Name), ".bson")] = rows
		}
	}
	if manifest == nil {
		return nil, nil, fmt.Errorf("archive has no %s", manifestFile)
	}
	return manifest, data, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func encodeBSONRows(rows []map[string]interface{}) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	for _, row := range rows {
		doc := make(map[string]interface{}, len(row))
		for key, value := range row {
			doc[key] = normalizeValue(value)
		}
		b, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		buffer.Write(b)
	}
	return buffer.Bytes(), nil
}

func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	default:
		return value
	}
}

func decodeBSONRows(payload []byte) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0)
	cursor := 0
	for cursor < len(payload) {
		if cursor+4 > len(payload) {
			return nil, fmt.Errorf("invalid bson payload")
		}
		docLen := int(int32(binary.LittleEndian.Uint32(payload[cursor : cursor+4])))
		if docLen <= 0 || cursor+docLen > len(payload) {
			return nil, fmt.Errorf("invalid bson document length")
		}
		var row map[string]interface{}
		if err := bson.Unmarshal(payload[cursor:cursor+docLen], &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		cursor += docLen
	}
	return rows, nil
}
