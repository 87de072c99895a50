package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/gilchrisn/rumor-spread-service/pkg/graph"
	"github.com/gilchrisn/rumor-spread-service/pkg/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

type datasetEntry struct {
	info  *models.Dataset
	graph *graph.Graph
}

// DatasetService keeps loaded graphs in memory. Graphs are never modified
// after loading and are shared by every job that uses them.
type DatasetService struct {
	datasets map[string]*datasetEntry
	mutex    sync.RWMutex
}

// NewDatasetService creates an empty dataset service
func NewDatasetService() *DatasetService {
	return &DatasetService{
		datasets: make(map[string]*datasetEntry),
	}
}

// Register loads an edge-list file and stores it as a new dataset
func (s *DatasetService) Register(req models.DatasetRequest) (*models.Dataset, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}
	if req.NumNodes <= 0 {
		return nil, fmt.Errorf("%w: num_nodes must be positive", ErrInvalidRequest)
	}

	g, stats, err := graph.LoadEdgeList(req.Path, req.NumNodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}

	return s.Add(name, req.Path, g, *stats), nil
}

// Add stores an already built graph as a dataset
func (s *DatasetService) Add(name, path string, g *graph.Graph, stats graph.ParseStats) *models.Dataset {
	degrees := g.Degrees()
	isolated, maxDegree := 0, 0
	for _, d := range degrees {
		if d == 0 {
			isolated++
		}
		if d > maxDegree {
			maxDegree = d
		}
	}

	dataset := &models.Dataset{
		ID:         uuid.New().String(),
		Name:       name,
		Path:       path,
		NumNodes:   g.NumNodes(),
		NumEdges:   g.NumEdges(),
		Isolated:   isolated,
		MaxDegree:  maxDegree,
		Components: len(topo.ConnectedComponents(g.Undirected())),
		Parse:      stats,
		CreatedAt:  time.Now(),
	}

	s.mutex.Lock()
	s.datasets[dataset.ID] = &datasetEntry{info: dataset, graph: g}
	s.mutex.Unlock()

	log.Info().
		Str("dataset_id", dataset.ID).
		Str("name", name).
		Int("nodes", dataset.NumNodes).
		Int("edges", dataset.NumEdges).
		Int("components", dataset.Components).
		Int("skipped_lines", stats.SkippedLines).
		Msg("Dataset registered")

	return dataset
}

// Get retrieves dataset metadata by ID
func (s *DatasetService) Get(datasetID string) (*models.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("%w: dataset %s", ErrNotFound, datasetID)
	}
	return entry.info, nil
}

// Graph retrieves the loaded graph of a dataset
func (s *DatasetService) Graph(datasetID string) (*graph.Graph, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("%w: dataset %s", ErrNotFound, datasetID)
	}
	return entry.graph, nil
}

// List returns all datasets, oldest first
func (s *DatasetService) List() []*models.Dataset {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := make([]*models.Dataset, 0, len(s.datasets))
	for _, entry := range s.datasets {
		datasets = append(datasets, entry.info)
	}
	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].CreatedAt.Before(datasets[j].CreatedAt)
	})
	return datasets
}

// Delete removes a dataset. Jobs already running keep their graph reference.
func (s *DatasetService) Delete(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.datasets[datasetID]; !exists {
		return fmt.Errorf("%w: dataset %s", ErrNotFound, datasetID)
	}
	delete(s.datasets, datasetID)

	log.Info().Str("dataset_id", datasetID).Msg("Dataset deleted")
	return nil
}
