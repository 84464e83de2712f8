package tools

import (
	"context"
	"encoding/json"

	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/bturcanu/sfclause/pkg/types"
)

const (
	DefaultRecentLimit = 10
	maxRecentLimit     = 2000
)

var (
	objectTypeParam = Param{Name: "object_type", Type: TypeString, Required: true,
		Description: "Salesforce object type (e.g., 'Account', 'Contact', 'Lead')"}
	recordIDParam = func(verb string) Param {
		return Param{Name: "record_id", Type: TypeString, Required: true,
			Description: "Salesforce record ID to " + verb}
	}
)

// Catalog returns every tool, in a stable order.
func Catalog() []Tool {
	return []Tool{
		{
			Name:        "salesforce_query",
			Description: "Execute SOQL queries against Salesforce to retrieve records",
			Permission:  ReadOnly,
			Params: []Param{
				{Name: "query", Type: TypeString, Required: true,
					Description: `SOQL query string (e.g., "SELECT Id, Name FROM Account LIMIT 10")`},
			},
			Handler: handleQuery,
		},
		{
			Name:        "salesforce_search",
			Description: "Execute SOSL searches across multiple Salesforce objects",
			Permission:  ReadOnly,
			Params: []Param{
				{Name: "search_term", Type: TypeString, Required: true,
					Description: "Search term to find across Salesforce objects"},
			},
			Handler: handleSearch,
		},
		{
			Name:        "salesforce_create_record",
			Description: "Create new records in Salesforce",
			Permission:  ReadWrite,
			Params: []Param{
				objectTypeParam,
				{Name: "record_data", Type: TypeString, Required: true,
					Description: "JSON string containing field values for the new record"},
			},
			Handler: handleCreate,
		},
		{
			Name:        "salesforce_update_record",
			Description: "Update existing records in Salesforce",
			Permission:  ReadWrite,
			Params: []Param{
				objectTypeParam,
				recordIDParam("update"),
				{Name: "record_data", Type: TypeString, Required: true,
					Description: "JSON string containing field values to update"},
			},
			Handler: handleUpdate,
		},
		{
			Name:        "salesforce_delete_record",
			Description: "Delete records from Salesforce",
			Permission:  ReadWrite,
			Destructive: true,
			Params:      []Param{objectTypeParam, recordIDParam("delete")},
			Handler:     handleDelete,
		},
		{
			Name:        "salesforce_get_record",
			Description: "Retrieve specific records from Salesforce by ID",
			Permission:  ReadOnly,
			Params:      []Param{objectTypeParam, recordIDParam("retrieve")},
			Handler:     handleGet,
		},
		{
			Name:        "salesforce_describe_object",
			Description: "Get metadata and field information for Salesforce objects",
			Permission:  ReadOnly,
			Params:      []Param{objectTypeParam},
			Handler:     handleDescribe,
		},
		{
			Name:        "salesforce_list_objects",
			Description: "List all available Salesforce objects in the org",
			Permission:  ReadOnly,
			Params:      []Param{},
			Handler:     handleListObjects,
		},
		{
			Name:        "salesforce_upsert_record",
			Description: "Insert or update records in Salesforce using external IDs",
			Permission:  ReadWrite,
			Params: []Param{
				objectTypeParam,
				{Name: "external_id_field", Type: TypeString, Required: true,
					Description: "Name of the external ID field"},
				{Name: "external_id_value", Type: TypeString, Required: true,
					Description: "Value of the external ID"},
				{Name: "record_data", Type: TypeString, Required: true,
					Description: "JSON string containing field values for the record"},
			},
			Handler: handleUpsert,
		},
		{
			Name:        "salesforce_bulk_create",
			Description: "Create multiple records in Salesforce using Bulk API",
			Permission:  ReadWrite,
			Params: []Param{
				objectTypeParam,
				{Name: "records_data", Type: TypeString, Required: true,
					Description: "JSON string containing array of record data"},
				{Name: "batch_size", Type: TypeInteger, Default: salesforce.DefaultBulkBatchSize,
					Description: "Number of records per batch (default: 10000)"},
			},
			Handler: handleBulkCreate,
		},
		{
			Name:        "salesforce_get_recent_records",
			Description: "Get recently created records for a specific object type",
			Permission:  ReadOnly,
			Params: []Param{
				objectTypeParam,
				{Name: "limit", Type: TypeInteger, Default: DefaultRecentLimit,
					Description: "Number of records to retrieve (default: 10)"},
			},
			Handler: handleRecentRecords,
		},
		{
			Name:        "salesforce_get_user_info",
			Description: "Get information about the current Salesforce user",
			Permission:  ReadOnly,
			Params:      []Param{},
			Handler:     handleUserInfo,
		},
		{
			Name:        "salesforce_get_record_count",
			Description: "Get count of records for a specific object type with optional filtering",
			Permission:  ReadOnly,
			Params: []Param{
				objectTypeParam,
				{Name: "where_clause", Type: TypeString, Default: "",
					Description: `Optional WHERE clause for filtering (e.g., "CreatedDate = TODAY")`},
			},
			Handler: handleRecordCount,
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Query and search
// ──────────────────────────────────────────────────────────────────────────────

type queryResponse struct {
	TotalSize int               `json:"totalSize"`
	Done      bool              `json:"done"`
	Records   []json.RawMessage `json:"records"`
}

func handleQuery(ctx context.Context, call *Call) (any, error) {
	q, err := call.Args.RequiredString("query")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.Query(ctx, NormalizeQuery(q))
	if err != nil {
		return nil, err
	}
	return queryResponse{TotalSize: res.TotalSize, Done: res.Done, Records: res.Records}, nil
}

func handleSearch(ctx context.Context, call *Call) (any, error) {
	term, err := call.Args.RequiredString("search_term")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.Search(ctx, BuildSearch(term))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return map[string]string{"message": "No results found"}, nil
	}
	return res, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Record CRUD
// ──────────────────────────────────────────────────────────────────────────────

type statusResponse struct {
	Success    bool `json:"success"`
	StatusCode int  `json:"status_code"`
}

func handleCreate(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	fields, err := call.Args.Object("record_data")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, objectType, fields)
}

func handleUpdate(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	id, err := call.Args.RequiredString("record_id")
	if err != nil {
		return nil, err
	}
	fields, err := call.Args.Object("record_data")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.Update(ctx, objectType, id, fields)
	if err != nil {
		return nil, err
	}
	return statusResponse{Success: true, StatusCode: status}, nil
}

func handleDelete(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	id, err := call.Args.RequiredString("record_id")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.Delete(ctx, objectType, id)
	if err != nil {
		return nil, err
	}
	return statusResponse{Success: true, StatusCode: status}, nil
}

func handleGet(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	id, err := call.Args.RequiredString("record_id")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, objectType, id)
}

func handleUpsert(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	field, err := call.Args.RequiredString("external_id_field")
	if err != nil {
		return nil, err
	}
	key, err := salesforce.ExternalIDKey(field, call.Args.String("external_id_value"))
	if err != nil {
		return nil, err
	}
	fields, err := call.Args.Object("record_data")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Upsert(ctx, objectType, key, fields)
}

func handleBulkCreate(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	records, err := call.Args.Records("records_data")
	if err != nil {
		return nil, err
	}
	batchSize, err := call.Args.Int("batch_size", salesforce.DefaultBulkBatchSize)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, types.ErrValidation("batch_size", "must be positive")
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.BulkInsert(ctx, objectType, records, batchSize)
}

// ──────────────────────────────────────────────────────────────────────────────
// Metadata
// ──────────────────────────────────────────────────────────────────────────────

func handleDescribe(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.Describe(ctx, objectType)
	if err != nil {
		return nil, err
	}
	return ProjectDescribe(raw)
}

func handleListObjects(ctx context.Context, call *Call) (any, error) {
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.DescribeGlobal(ctx)
	if err != nil {
		return nil, err
	}
	return ProjectGlobal(raw)
}

// ──────────────────────────────────────────────────────────────────────────────
// Convenience queries
// ──────────────────────────────────────────────────────────────────────────────

func handleRecentRecords(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	limit, err := call.Args.Int("limit", DefaultRecentLimit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxRecentLimit {
		return nil, types.ErrValidation("limit", "must be between 1 and 2000")
	}
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, BuildRecentQuery(objectType, limit))
}

// handleUserInfo looks the session's user up by id and falls back to the
// first visible user when the id is unknown or matches nothing.
func handleUserInfo(ctx context.Context, call *Call) (any, error) {
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.CurrentUserID(ctx)
	if err != nil && call.Log != nil {
		call.Log.DebugContext(ctx, "current user lookup failed, using first user", "error", err)
	}
	if err == nil && id != "" {
		res, err := s.Query(ctx, BuildUserQuery(id))
		if err != nil {
			return nil, err
		}
		if res.TotalSize > 0 {
			return res, nil
		}
	}
	return s.Query(ctx, FallbackUserQuery)
}

// countResponse reports WhereClause as null when no clause was given.
type countResponse struct {
	ObjectType  string  `json:"object_type"`
	Count       int     `json:"count"`
	WhereClause *string `json:"where_clause"`
}

func handleRecordCount(ctx context.Context, call *Call) (any, error) {
	objectType, err := call.ObjectType("object_type")
	if err != nil {
		return nil, err
	}
	where := call.Args.String("where_clause")
	s, err := call.Session(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.Query(ctx, BuildCountQuery(objectType, where))
	if err != nil {
		return nil, err
	}
	out := countResponse{ObjectType: objectType, Count: res.TotalSize}
	if where != "" {
		out.WhereClause = &where
	}
	return out, nil
}
