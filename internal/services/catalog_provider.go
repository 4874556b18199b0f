package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-servicehealth/internal/catalogfilter"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// ServiceCatalogProvider supplies the service catalog for a window.
type ServiceCatalogProvider interface {
	Services(ctx context.Context, window models.TimeWindow) ([]models.ServiceRecord, error)
	// AttributeValues is the dotted-path vocabulary of the catalog.
	AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error)
}

/* ------------------------------- file source ------------------------------- */

type catalogFile struct {
	Services []models.ServiceRecord `yaml:"services"`
}

// FileCatalogProvider serves a YAML catalog and reloads it when the file
// changes.
type FileCatalogProvider struct {
	path   string
	logger logger.Logger

	mu       sync.RWMutex
	services []models.ServiceRecord
}

func NewFileCatalogProvider(path string, logger logger.Logger) (*FileCatalogProvider, error) {
	p := &FileCatalogProvider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file; on error the previous catalog stays.
func (p *FileCatalogProvider) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		monitoring.RecordCatalogLoad("file", false)
		return fmt.Errorf("read catalog %s: %w", p.path, err)
	}
	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		monitoring.RecordCatalogLoad("file", false)
		return fmt.Errorf("parse catalog %s: %w", p.path, err)
	}
	for i, svc := range doc.Services {
		if strings.TrimSpace(svc.ServiceName) == "" {
			monitoring.RecordCatalogLoad("file", false)
			return fmt.Errorf("parse catalog %s: service %d has no serviceName", p.path, i)
		}
	}

	p.mu.Lock()
	p.services = doc.Services
	p.mu.Unlock()
	monitoring.RecordCatalogLoad("file", true)
	p.logger.Info("Service catalog loaded", "path", p.path, "services", len(doc.Services))
	return nil
}

// Services returns a copy of the catalog; the window is not used.
func (p *FileCatalogProvider) Services(ctx context.Context, _ models.TimeWindow) ([]models.ServiceRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.ServiceRecord, len(p.services))
	copy(out, p.services)
	return out, nil
}

func (p *FileCatalogProvider) AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error) {
	svcs, err := p.Services(ctx, window)
	if err != nil {
		return nil, err
	}
	return catalogfilter.AttributeVocabulary(svcs), nil
}

// Watch reloads the catalog on writes until ctx is done. The directory is
// watched so editors that replace the file are picked up.
func (p *FileCatalogProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("failed to watch catalog file: %w", err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := p.Reload(); err != nil {
					p.logger.Error("Failed to reload service catalog", "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("Catalog watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

/* ----------------------------- metrics source ------------------------------ */

// MetricsCatalogOptions configures MetricsCatalogProvider.
type MetricsCatalogOptions struct {
	Match            []string
	ServiceLabel     string
	EnvironmentLabel string
	// AttributePrefix selects labels that become group-by attributes; the
	// rest of the label name is split on "__" into a nested path.
	AttributePrefix string
	Cache           cache.ValkeyCluster
	CacheTTL        time.Duration
}

// MetricsCatalogProvider derives the catalog from series labels.
type MetricsCatalogProvider struct {
	series SeriesClient
	opts   MetricsCatalogOptions
	logger logger.Logger
}

func NewMetricsCatalogProvider(series SeriesClient, opts MetricsCatalogOptions, logger logger.Logger) *MetricsCatalogProvider {
	return &MetricsCatalogProvider{series: series, opts: opts, logger: logger}
}

func (p *MetricsCatalogProvider) Services(ctx context.Context, window models.TimeWindow) ([]models.ServiceRecord, error) {
	start := strconv.FormatInt(window.StartSeconds(), 10)
	end := strconv.FormatInt(window.EndSeconds(), 10)
	key := "catalog:" + cache.QueryHash(append([]string{start, end, p.opts.AttributePrefix}, p.opts.Match...)...)

	if p.opts.Cache != nil {
		if raw, err := p.opts.Cache.Get(ctx, key); err == nil {
			var cached []models.ServiceRecord
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	sets, err := p.series.GetSeries(ctx, &models.SeriesRequest{Match: p.opts.Match, Start: start, End: end})
	if err != nil {
		monitoring.RecordCatalogLoad("metrics", false)
		return nil, AsQueryError(err)
	}
	monitoring.RecordCatalogLoad("metrics", true)

	services := p.fromSeries(sets)
	if p.opts.Cache != nil {
		if err := p.opts.Cache.Set(ctx, key, services, p.opts.CacheTTL); err != nil {
			p.logger.Warn("Failed to cache service catalog", "error", err)
		}
	}
	return services, nil
}

func (p *MetricsCatalogProvider) AttributeValues(ctx context.Context, window models.TimeWindow) (map[string][]string, error) {
	svcs, err := p.Services(ctx, window)
	if err != nil {
		return nil, err
	}
	return catalogfilter.AttributeVocabulary(svcs), nil
}

// fromSeries merges label sets into one record per service, ordered by name.
func (p *MetricsCatalogProvider) fromSeries(sets []map[string]string) []models.ServiceRecord {
	byName := map[string]*models.ServiceRecord{}
	for _, labels := range sets {
		name := labels[p.opts.ServiceLabel]
		if name == "" {
			continue
		}
		rec, ok := byName[name]
		if !ok {
			rec = &models.ServiceRecord{ServiceName: name, Environment: labels[p.opts.EnvironmentLabel]}
			byName[name] = rec
		}
		for _, label := range p.attributeLabels(labels) {
			path := strings.Split(strings.TrimPrefix(label, p.opts.AttributePrefix), "__")
			if rec.GroupByAttributes == nil {
				rec.GroupByAttributes = map[string]any{}
			}
			setPath(rec.GroupByAttributes, path, labels[label])
		}
	}

	out := make([]models.ServiceRecord, 0, len(byName))
	for _, rec := range byName {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}

// attributeLabels returns the attribute label names of a series in sorted
// order, so a shorter path is always stored before a deeper one under it.
func (p *MetricsCatalogProvider) attributeLabels(labels map[string]string) []string {
	if p.opts.AttributePrefix == "" {
		return nil
	}
	var out []string
	for label := range labels {
		if strings.HasPrefix(label, p.opts.AttributePrefix) {
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// setPath stores value at the nested path; an existing leaf on the way
// wins over a deeper value.
func setPath(m map[string]any, path []string, value string) {
	for i, seg := range path {
		if seg == "" {
			return
		}
		if i == len(path)-1 {
			if _, exists := m[seg]; !exists {
				m[seg] = value
			}
			return
		}
		next, ok := m[seg].(map[string]any)
		if !ok {
			if _, exists := m[seg]; exists {
				return
			}
			next = map[string]any{}
			m[seg] = next
		}
		m = next
	}
}
