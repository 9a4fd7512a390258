// Package catalog loads the tracked product list from a YAML file, validates
// it against an embedded JSON schema and optionally reloads it on change.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// FileConfig maps the catalog document.
type FileConfig struct {
	Products []types.Product `yaml:"products"`
}

// Snapshot is the product list at one reload.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Products []types.Product
}

// ChangeListener runs after a successful reload.
type ChangeListener func(Snapshot)

type Catalog struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// Open reads path once. With watch set, later edits are picked up through
// fsnotify; an invalid edit is logged and the previous list stays active.
func Open(path string, watch bool) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog requires path")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	c := &Catalog{path: path, schema: schema}
	if err := c.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read catalog failed: %w", err)
		}
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := c.Reload(); err != nil {
				logger.Errorf("catalog reload failed op=%s: %v", evt.Op, err)
			}
		})
		v.WatchConfig()
		c.v = v
	}
	return c, nil
}

func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSnapshot(c.snapshot)
}

func (c *Catalog) Products() []types.Product {
	return c.Snapshot().Products
}

// OnChange registers fn for successful reloads.
func (c *Catalog) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Reload re-reads the file and notifies listeners. An invalid file leaves the
// previous snapshot active.
func (c *Catalog) Reload() error {
	if err := c.reload(); err != nil {
		return err
	}
	c.notifyListeners()
	return nil
}

func (c *Catalog) reload() error {
	products, err := c.readFile()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snapshot = Snapshot{
		Version:  c.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Products: products,
	}
	c.mu.Unlock()
	logger.Infof("Catalog loaded %d products from %s", len(products), filepath.Base(c.path))
	return nil
}

func (c *Catalog) readFile() ([]types.Product, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog failed: %w", err)
	}
	if err := c.validate(raw); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", filepath.Base(c.path), err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse catalog failed: %w", err)
	}
	return normalizeProducts(cfg.Products)
}

// validate checks the raw document against the schema. YAML is converted to
// JSON first so the validator sees JSON types.
func (c *Catalog) validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse catalog failed: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var inst any
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	if err := dec.Decode(&inst); err != nil {
		return err
	}
	return c.schema.Validate(inst)
}

func normalizeProducts(in []types.Product) ([]types.Product, error) {
	out := make([]types.Product, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p.SKU = strings.TrimSpace(p.SKU)
		p.Name = strings.TrimSpace(p.Name)
		p.Locator = strings.TrimSpace(p.Locator)
		if _, dup := seen[p.SKU]; dup {
			return nil, fmt.Errorf("duplicate sku %s", p.SKU)
		}
		seen[p.SKU] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func (c *Catalog) notifyListeners() {
	c.mu.RLock()
	snap := cloneSnapshot(c.snapshot)
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("catalog listener")
			cb(snap)
		}(fn)
	}
}

// Merge overlays catalog products onto the inline list: a catalog entry with
// an existing SKU replaces it in place, new SKUs are appended.
func Merge(inline, fromCatalog []types.Product) []types.Product {
	out := append([]types.Product(nil), inline...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.SKU] = i
	}
	for _, p := range fromCatalog {
		if i, ok := index[p.SKU]; ok {
			out[i] = p
			continue
		}
		index[p.SKU] = len(out)
		out = append(out, p)
	}
	return out
}

func cloneSnapshot(src Snapshot) Snapshot {
	return Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Products: append([]types.Product(nil), src.Products...),
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("catalog.json")
}
