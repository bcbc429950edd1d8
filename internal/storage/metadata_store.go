package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/obslog"
	"github.com/fieldmesh/tscore/internal/rowkey"
	"github.com/fieldmesh/tscore/internal/storemetrics"
	"github.com/fieldmesh/tscore/internal/tserrors"
)

// metadataFamily is the column family metadata namespaces live under. An
// internal variant would use a distinct family to separate data never
// exposed to external readers; this core only implements the single
// externally-visible family.
const metadataFamily = "m"

// MetaDataStore holds one row per (objectName, objectKey), one column per
// namespace.
type MetaDataStore struct {
	conn *Connection
}

// Put writes data under (objectName, objectKey, namespace).
func (s *MetaDataStore) Put(ctx context.Context, objectName, objectKey, namespace string, data map[string]interface{}) error {
	start := time.Now()
	err := s.put(ctx, objectName, objectKey, namespace, data)
	s.record(ctx, obslog.OpInsert, objectKey, 1, start, err)
	return err
}

func (s *MetaDataStore) put(ctx context.Context, objectName, objectKey, namespace string, data map[string]interface{}) error {
	if err := s.conn.checkReadOnly("MetaDataStore.Put"); err != nil {
		return err
	}
	if objectName == "" || objectKey == "" || namespace == "" {
		return tserrors.NewArgumentError("objectName, objectKey, and namespace must be non-empty")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("storage: encode metadata: %w", err)
	}

	h, err := s.conn.GetInstance()
	if err != nil {
		return err
	}
	results, err := h.MutateRows(ctx, []backend.Mutation{{
		RowKey: rowkey.MetadataRow(objectName, objectKey),
		Cells:  []backend.Cell{{Family: metadataFamily, Qualifier: namespace, Value: payload}},
	}})
	if err != nil {
		return wrapBackendErr("MetaDataStore.Put", err)
	}
	if !results[0].Applied {
		return &tserrors.BackendError{Op: "MetaDataStore.Put", Message: "mutation not applied", Cause: results[0].Err}
	}
	return nil
}

// Get reads the given namespaces for (objectName, objectKey); an empty
// namespaces list returns every namespace stored on the row.
func (s *MetaDataStore) Get(ctx context.Context, objectName, objectKey string, namespaces []string) (map[string]map[string]interface{}, error) {
	start := time.Now()
	out, err := s.get(ctx, objectName, objectKey, namespaces)
	s.record(ctx, obslog.OpGet, objectKey, len(out), start, err)
	return out, err
}

func (s *MetaDataStore) get(ctx context.Context, objectName, objectKey string, namespaces []string) (map[string]map[string]interface{}, error) {
	h, err := s.conn.GetInstance()
	if err != nil {
		return nil, err
	}
	rows, err := h.GetRows(ctx, []string{rowkey.MetadataRow(objectName, objectKey)}, []string{metadataFamily})
	if err != nil {
		return nil, wrapBackendErr("MetaDataStore.Get", err)
	}
	wanted := make(map[string]bool, len(namespaces))
	for _, n := range namespaces {
		wanted[n] = true
	}

	out := make(map[string]map[string]interface{})
	for _, row := range rows {
		for _, cell := range row.Cells {
			if len(wanted) > 0 && !wanted[cell.Qualifier] {
				continue
			}
			var data map[string]interface{}
			if err := json.Unmarshal(cell.Value, &data); err != nil {
				return nil, tserrors.NewInvariantViolation("malformed metadata payload for namespace %q: %v", cell.Qualifier, err)
			}
			out[cell.Qualifier] = data
		}
	}
	return out, nil
}

func (s *MetaDataStore) record(ctx context.Context, op obslog.Op, key string, n int, start time.Time, err error) {
	if s.conn.log != nil {
		s.conn.log.Record(ctx, op, "metadata", key, n, time.Since(start), err)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storemetrics.OperationsTotal.WithLabelValues("metadata", string(op), outcome).Inc()
	storemetrics.OperationDuration.WithLabelValues("metadata", string(op)).Observe(time.Since(start).Seconds())
}
