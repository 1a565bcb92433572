package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knowd-io/knowd/internal/domain"
	"github.com/knowd-io/knowd/internal/registry"
	"github.com/knowd-io/knowd/internal/usecase/vectorize"
)

// Pipeline is the slice of the vectorization service the tools need.
type Pipeline interface {
	SaveDocument(ctx context.Context, doc domain.Document) vectorize.Outcome
	SaveBatch(ctx context.Context, docs []domain.Document) vectorize.Report
	DeleteDocument(ctx context.Context, docID string) error
	Status(ctx context.Context, docID string) (domain.MetadataRecord, error)
}

// NewSaveDocument returns the tool that runs one document through the
// vectorization pipeline.
func NewSaveDocument(pipeline Pipeline) registry.Tool {
	return registry.NewFunc("save_document",
		"Embed a document and store its vector and status metadata.",
		func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
			doc, err := parseDocument(mergeArgs(args, kwargs))
			if err != nil {
				return nil, err
			}
			return outcomeResult(pipeline.SaveDocument(ctx, doc)), nil
		})
}

// NewBatchVectorize returns the tool that runs a batch of documents through
// the pipeline, reporting per-document outcomes.
func NewBatchVectorize(pipeline Pipeline) registry.Tool {
	return registry.NewFunc("batch_vectorize",
		"Vectorize a batch of documents, continuing past individual failures.",
		func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
			raw, ok := argValue(args, kwargs, "documents")
			if !ok {
				return nil, errors.New("'documents' is required")
			}
			items, ok := raw.([]any)
			if !ok {
				return nil, errors.New("'documents' must be an array of objects")
			}

			docs := make([]domain.Document, len(items))
			for i, item := range items {
				fields, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("document at index %d must be an object", i)
				}
				doc, err := parseDocument(fields)
				if err != nil {
					return nil, fmt.Errorf("document at index %d: %w", i, err)
				}
				docs[i] = doc
			}

			report := pipeline.SaveBatch(ctx, docs)
			results := make([]map[string]any, len(report.Outcomes))
			for i, o := range report.Outcomes {
				results[i] = outcomeResult(o)
			}
			return success(map[string]any{
				"total":      report.Total,
				"successful": report.Successful,
				"failed":     report.Failed,
				"results":    results,
			}), nil
		})
}

// NewDeleteDocument returns the tool that removes a document's vector and
// metadata.
func NewDeleteDocument(pipeline Pipeline) registry.Tool {
	return registry.NewFunc("delete_document",
		"Delete a document's vector and status metadata.",
		func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
			docID, err := stringArg(args, kwargs, "doc_id")
			if err != nil {
				return nil, err
			}
			if err := pipeline.DeleteDocument(ctx, docID); err != nil {
				return failure(fmt.Sprintf("delete %s: %v", docID, err)), nil
			}
			return success(map[string]any{"doc_id": docID}), nil
		})
}

// NewDocumentStatus returns the tool that reads a document's pipeline status.
func NewDocumentStatus(pipeline Pipeline) registry.Tool {
	return registry.NewFunc("get_document_status",
		"Return the pipeline status record for a document.",
		func(ctx context.Context, args, kwargs map[string]any) (map[string]any, error) {
			docID, err := stringArg(args, kwargs, "doc_id")
			if err != nil {
				return nil, err
			}
			rec, err := pipeline.Status(ctx, docID)
			if err != nil {
				if errors.Is(err, domain.ErrDocumentNotFound) {
					return failure(fmt.Sprintf("document %q not found", docID)), nil
				}
				return failure(fmt.Sprintf("status %s: %v", docID, err)), nil
			}
			return success(map[string]any{
				"doc_id":     rec.DocID,
				"state":      string(rec.Status),
				"version":    rec.Version,
				"updated_at": rec.UpdatedAt.Format(time.RFC3339Nano),
			}), nil
		})
}

func mergeArgs(args, kwargs map[string]any) map[string]any {
	merged := make(map[string]any, len(args)+len(kwargs))
	for k, v := range args {
		merged[k] = v
	}
	for k, v := range kwargs {
		merged[k] = v
	}
	return merged
}

func parseDocument(fields map[string]any) (domain.Document, error) {
	docID, err := stringArg(fields, nil, "doc_id")
	if err != nil {
		return domain.Document{}, err
	}
	content, err := stringArg(fields, nil, "content")
	if err != nil {
		return domain.Document{}, err
	}
	metadata, err := mapArg(fields, nil, "metadata")
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{DocID: docID, Content: content, Metadata: metadata}
	if tag, ok := fields["tag"]; ok {
		s, ok := tag.(string)
		if !ok {
			return domain.Document{}, errors.New("'tag' must be a string")
		}
		doc.Tag = s
	}
	return doc, nil
}

// outcomeResult flattens a pipeline outcome into a wire-friendly map. The
// warning variant stays a success: the vector write went through.
func outcomeResult(o vectorize.Outcome) map[string]any {
	if !o.Succeeded() {
		result := failure(o.Err().Error())
		result["doc_id"] = o.DocID()
		return result
	}
	result := success(map[string]any{
		"doc_id":  o.DocID(),
		"state":   string(o.Code()),
		"version": o.Version(),
	})
	if o.Warning() != "" {
		result["warning"] = o.Warning()
	}
	return result
}
