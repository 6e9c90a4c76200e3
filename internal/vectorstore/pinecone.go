package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"

	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

type controlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	FetchVectors(ctx context.Context, ids []string) (*pinecone.FetchVectorsResponse, error)
}

// IndexSpec describes a serverless index to open or create.
type IndexSpec struct {
	Name      string
	Dimension int
	Cloud     string
	Region    string
	Namespace string
}

// PineconeIndex implements Index against one Pinecone serverless index.
type PineconeIndex struct {
	name string
	conn dataPlane
}

// NewPineconeClient creates the control-plane client.
func NewPineconeClient(apiKey string) (*pinecone.Client, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create pinecone client: %w", err)
	}
	return pc, nil
}

// OpenPineconeIndex ensures the index exists, creating it with cosine metric
// when missing, and connects to its data plane.
func OpenPineconeIndex(ctx context.Context, pc *pinecone.Client, spec IndexSpec, logger *logging.Logger) (*PineconeIndex, error) {
	host, err := ensureIndex(ctx, pc, spec, logger)
	if err != nil {
		return nil, err
	}
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: spec.Namespace})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect to index %s: %w", spec.Name, err)
	}
	return &PineconeIndex{name: spec.Name, conn: conn}, nil
}

func ensureIndex(ctx context.Context, cp controlPlane, spec IndexSpec, logger *logging.Logger) (string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	indexes, err := cp.ListIndexes(ctx)
	if err != nil {
		return "", fmt.Errorf("vectorstore: list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == spec.Name {
			return waitReady(ctx, cp, spec.Name)
		}
	}

	logger.Info("creating pinecone index", "index", spec.Name, "dimension", spec.Dimension, "region", spec.Region)
	_, err = cp.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      spec.Name,
		Dimension: int32(spec.Dimension),
		Metric:    pinecone.Cosine,
		Cloud:     pinecone.Cloud(spec.Cloud),
		Region:    spec.Region,
	})
	if err != nil {
		return "", fmt.Errorf("vectorstore: create index %s: %w", spec.Name, err)
	}
	return waitReady(ctx, cp, spec.Name)
}

func waitReady(ctx context.Context, cp controlPlane, name string) (string, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		idx, err := cp.DescribeIndex(ctx, name)
		if err != nil {
			return "", fmt.Errorf("vectorstore: describe index %s: %w", name, err)
		}
		if idx.Status == nil || idx.Status.Ready {
			if idx.Host == "" {
				return "", fmt.Errorf("vectorstore: index %s has no host", name)
			}
			return idx.Host, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	batch := make([]*pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		md, err := toStruct(v.Metadata)
		if err != nil {
			return err
		}
		batch = append(batch, &pinecone.Vector{Id: v.ID, Values: v.Values, Metadata: md})
	}
	if _, err := p.conn.UpsertVectors(ctx, batch); err != nil {
		return fmt.Errorf("vectorstore: upsert into %s: %w", p.name, err)
	}
	return nil
}

func (p *PineconeIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	if req.TopK <= 0 {
		return nil, ErrInvalidTopK
	}
	in := &pinecone.QueryByVectorValuesRequest{
		Vector:          req.Vector,
		TopK:            uint32(req.TopK),
		IncludeMetadata: true,
	}
	if expr := req.Filter.expression(); expr != nil {
		filter, err := toStruct(expr)
		if err != nil {
			return nil, err
		}
		in.MetadataFilter = filter
	}

	resp, err := p.conn.QueryByVectorValues(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query %s: %w", p.name, err)
	}
	if resp == nil {
		return nil, errors.New("vectorstore: empty query response")
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Score:    float64(m.Score),
			Metadata: fromStruct(m.Vector.Metadata),
		})
	}
	return matches, nil
}

func (p *PineconeIndex) Fetch(ctx context.Context, ids []string) (map[string]Vector, error) {
	out := make(map[string]Vector, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	resp, err := p.conn.FetchVectors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: fetch from %s: %w", p.name, err)
	}
	if resp == nil {
		return out, nil
	}
	for id, v := range resp.Vectors {
		if v == nil {
			continue
		}
		out[id] = Vector{ID: id, Values: v.Values, Metadata: fromStruct(v.Metadata)}
	}
	return out, nil
}
