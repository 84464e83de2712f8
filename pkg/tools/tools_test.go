package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/bturcanu/sfclause/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ──────────────────────────────────────────────────────────────────────────────
// Query builders
// ──────────────────────────────────────────────────────────────────────────────

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`SELECT Id FROM Account WHERE Name = "Acme"`, `SELECT Id FROM Account WHERE Name = 'Acme'`},
		{`SELECT Id FROM Account WHERE Name = 'Acme'`, `SELECT Id FROM Account WHERE Name = 'Acme'`},
		{`SELECT Id FROM Account LIMIT 10`, `SELECT Id FROM Account LIMIT 10`},
		{`SELECT Id FROM Contact WHERE FirstName="Ada" AND LastName = "Lovelace"`, `SELECT Id FROM Contact WHERE FirstName='Ada' AND LastName = 'Lovelace'`},
		{`SELECT Id FROM Lead WHERE Name LIKE "Ac%"`, `SELECT Id FROM Lead WHERE Name LIKE "Ac%"`},
		{`SELECT Id FROM Account WHERE Name = ""`, `SELECT Id FROM Account WHERE Name = ""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), tt.in)
	}
}

func TestBuildCountQuery(t *testing.T) {
	assert.Equal(t, "SELECT COUNT() FROM Contact", BuildCountQuery("Contact", ""))
	assert.Equal(t, "SELECT COUNT() FROM Contact WHERE CreatedDate = TODAY", BuildCountQuery("Contact", "CreatedDate = TODAY"))
}

func TestBuildRecentQuery(t *testing.T) {
	assert.Equal(t, "SELECT Id, Name, CreatedDate FROM Lead ORDER BY CreatedDate DESC LIMIT 10", BuildRecentQuery("Lead", 10))
}

func TestBuildUserQuery_QuotesID(t *testing.T) {
	assert.Equal(t,
		"SELECT Id, Name, Email, Username, Profile.Name, UserRole.Name FROM User WHERE Id = '005xx'",
		BuildUserQuery("005xx"))
	assert.Contains(t, BuildUserQuery(`x' OR Id != '`), `WHERE Id = 'x\' OR Id != \''`)
}

// ──────────────────────────────────────────────────────────────────────────────
// Metadata projection
// ──────────────────────────────────────────────────────────────────────────────

func describePayload(n int) json.RawMessage {
	fields := make([]map[string]any, n)
	for i := range fields {
		f := map[string]any{
			"name":       fmt.Sprintf("Field%d__c", i),
			"label":      fmt.Sprintf("Field %d", i),
			"type":       "string",
			"nillable":   i%2 == 0,
			"createable": true,
			"updateable": true,
			"length":     255,
			"unique":     false,
			"soapType":   "xsd:string",
		}
		if i%5 == 0 {
			f["picklistValues"] = []any{map[string]any{"value": "A", "active": true}}
		}
		fields[i] = f
	}
	b, _ := json.Marshal(map[string]any{
		"name": "Widget__c", "label": "Widget", "labelPlural": "Widgets", "keyPrefix": "a01",
		"createable": true, "updateable": true, "deletable": false, "queryable": true, "searchable": true,
		"custom": true, "urls": map[string]any{}, "fields": fields,
	})
	return b
}

func TestProjectDescribe_FiftyFields(t *testing.T) {
	desc, err := ProjectDescribe(describePayload(50))
	require.NoError(t, err)
	require.Len(t, desc.Fields, 50)

	var decoded struct {
		Fields []map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(Result{Value: desc}.JSON()), &decoded))
	require.Len(t, decoded.Fields, 50)
	want := []string{"name", "label", "type", "required", "createable", "updateable", "length", "picklistValues"}
	for i, f := range decoded.Fields {
		assert.Len(t, f, 8, "field %d", i)
		for _, k := range want {
			assert.Contains(t, f, k, "field %d", i)
		}
		assert.Equal(t, i%2 != 0, f["required"], "field %d required", i)
		assert.Equal(t, float64(255), f["length"])
		if i%5 == 0 {
			assert.Len(t, f["picklistValues"], 1)
		} else {
			assert.Equal(t, []any{}, f["picklistValues"])
		}
	}
}

func TestProjectDescribe_TopLevel(t *testing.T) {
	desc, err := ProjectDescribe(describePayload(1))
	require.NoError(t, err)

	var top map[string]any
	require.NoError(t, json.Unmarshal([]byte(Result{Value: desc}.JSON()), &top))
	assert.Len(t, top, 10)
	assert.Equal(t, "Widget__c", top["name"])
	assert.Equal(t, "a01", top["keyPrefix"])
	assert.Equal(t, false, top["deletable"])
	assert.NotContains(t, top, "custom")
}

func TestProjectDescribe_MissingAttributes(t *testing.T) {
	desc, err := ProjectDescribe(json.RawMessage(`{"name":"Account","fields":[{"name":"Id"}]}`))
	require.NoError(t, err)
	assert.Nil(t, desc.Label)
	require.Len(t, desc.Fields, 1)
	assert.False(t, desc.Fields[0].Required, "absent nillable is not required")
	assert.Equal(t, []any{}, desc.Fields[0].PicklistValues)

	empty, err := ProjectDescribe(json.RawMessage(`{"name":"Account"}`))
	require.NoError(t, err)
	assert.NotNil(t, empty.Fields)

	_, err = ProjectDescribe(json.RawMessage(`<html>`))
	assert.Error(t, err)
}

func TestProjectGlobal(t *testing.T) {
	raw := json.RawMessage(`{"encoding":"UTF-8","maxBatchSize":200,"sobjects":[
		{"name":"Account","label":"Account","labelPlural":"Accounts","keyPrefix":"001","createable":true,"updateable":true,"deletable":true,"queryable":true,"searchable":true,"custom":false,"urls":{}},
		{"name":"Widget__c","label":"Widget","custom":true},
		{"name":"Legacy"}
	]}`)
	out, err := ProjectGlobal(raw)
	require.NoError(t, err)
	objs := out["objects"]
	require.Len(t, objs, 3)
	assert.Equal(t, "001", objs[0].KeyPrefix)
	assert.Equal(t, true, objs[1].Custom)
	assert.Equal(t, false, objs[2].Custom)
	assert.Nil(t, objs[2].Label)

	var decoded map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(Result{Value: out}.JSON()), &decoded))
	assert.Len(t, decoded["objects"][0], 10)
}

// ──────────────────────────────────────────────────────────────────────────────
// Args and Result
// ──────────────────────────────────────────────────────────────────────────────

func TestArgs_Int(t *testing.T) {
	tests := []struct {
		name    string
		args    Args
		want    int
		wantErr bool
	}{
		{"absent", Args{}, 10, false},
		{"null", Args{"limit": nil}, 10, false},
		{"float", Args{"limit": float64(25)}, 25, false},
		{"int", Args{"limit": 7}, 7, false},
		{"number", Args{"limit": json.Number("42")}, 42, false},
		{"string", Args{"limit": " 5 "}, 5, false},
		{"blank string", Args{"limit": ""}, 10, false},
		{"fraction", Args{"limit": 2.5}, 0, true},
		{"too large", Args{"limit": 1e19}, 0, true},
		{"too small", Args{"limit": -1e19}, 0, true},
		{"max float", Args{"limit": math.MaxFloat64}, 0, true},
		{"word", Args{"limit": "ten"}, 0, true},
		{"bool", Args{"limit": true}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.args.Int("limit", 10)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.KindValidation, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgs_ObjectAndRecords(t *testing.T) {
	obj, err := Args{"d": `{"Name":"Acme","NumberOfEmployees":12}`}.Object("d")
	require.NoError(t, err)
	assert.Equal(t, "Acme", obj["Name"])

	obj, err = Args{"d": map[string]any{"Name": "Acme"}}.Object("d")
	require.NoError(t, err)
	assert.Equal(t, "Acme", obj["Name"])

	for _, bad := range []any{`{"Name":`, `["x"]`, `null`, 12.0} {
		_, err := Args{"d": bad}.Object("d")
		assert.Equal(t, types.KindValidation, types.KindOf(err), "%v", bad)
	}

	recs, err := Args{"r": `[{"LastName":"A"},{"LastName":"B"}]`}.Records("r")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = Args{"r": `[{"LastName":"A"}, 3]`}.Records("r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")

	_, err = Args{}.Records("r")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestArgsFromJSON(t *testing.T) {
	args, err := ArgsFromJSON(json.RawMessage(`{"query":"SELECT Id FROM Account"}`))
	require.NoError(t, err)
	assert.Equal(t, "SELECT Id FROM Account", args.String("query"))

	args, err = ArgsFromJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = ArgsFromJSON(json.RawMessage(`[1,2]`))
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestResultJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Result{Value: map[string]int{"a": 1}}.JSON())
	assert.Equal(t, "{\n  \"error\": \"boom\"\n}", Result{Err: errors.New("boom")}.JSON())
	assert.Equal(t, "null", Result{}.JSON())
	assert.Equal(t, `"NaN"`, Result{Value: math.NaN()}.JSON())
	assert.Equal(t, "{\n  \"q\": \"Amount > 5 & x < 3\"\n}", Result{Value: map[string]string{"q": "Amount > 5 & x < 3"}}.JSON())
}

// ──────────────────────────────────────────────────────────────────────────────
// Dispatcher
// ──────────────────────────────────────────────────────────────────────────────

type fakeSession struct {
	queries  []string
	searches []string
	results  map[string]*salesforce.QueryResult
	queryErr error
	userID   string
	userErr  error
	search   json.RawMessage
	describe json.RawMessage
	global   json.RawMessage

	created    map[string]any
	updatedID  string
	upsertKey  string
	bulkBatch  int
	bulkCount  int
	deleteCode int
	panicOn    string
}

func (f *fakeSession) Query(_ context.Context, soql string) (*salesforce.QueryResult, error) {
	f.queries = append(f.queries, soql)
	if f.panicOn == "query" {
		panic("nil map")
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if r, ok := f.results[soql]; ok {
		return r, nil
	}
	return &salesforce.QueryResult{Done: true, Records: []json.RawMessage{}}, nil
}

func (f *fakeSession) Search(_ context.Context, sosl string) (json.RawMessage, error) {
	f.searches = append(f.searches, sosl)
	return f.search, nil
}

func (f *fakeSession) DescribeGlobal(context.Context) (json.RawMessage, error) { return f.global, nil }

func (f *fakeSession) CurrentUserID(context.Context) (string, error) { return f.userID, f.userErr }

func (f *fakeSession) Create(_ context.Context, _ string, fields map[string]any) (json.RawMessage, error) {
	f.created = fields
	return json.RawMessage(`{"id":"001xx","success":true,"errors":[]}`), nil
}

func (f *fakeSession) Update(_ context.Context, _, id string, _ map[string]any) (int, error) {
	f.updatedID = id
	return 204, nil
}

func (f *fakeSession) Delete(context.Context, string, string) (int, error) {
	if f.deleteCode != 0 {
		return f.deleteCode, nil
	}
	return 0, types.ErrRemote(404, "NOT_FOUND", "NOT_FOUND: The requested resource does not exist (status 404)")
}

func (f *fakeSession) Get(_ context.Context, objectType, id string) (json.RawMessage, error) {
	return json.RawMessage(fmt.Sprintf(`{"attributes":{"type":%q},"Id":%q}`, objectType, id)), nil
}

func (f *fakeSession) Upsert(_ context.Context, _, key string, _ map[string]any) (salesforce.UpsertResult, error) {
	f.upsertKey = key
	return salesforce.UpsertResult{Success: true, StatusCode: 201, Created: true, ID: "001yy"}, nil
}

func (f *fakeSession) Describe(context.Context, string) (json.RawMessage, error) { return f.describe, nil }

func (f *fakeSession) BulkInsert(_ context.Context, _ string, records []map[string]any, batchSize int) ([]salesforce.BulkResult, error) {
	f.bulkBatch = batchSize
	f.bulkCount = len(records)
	out := make([]salesforce.BulkResult, len(records))
	for i := range out {
		out[i] = salesforce.BulkResult{Success: true, Created: true, ID: fmt.Sprintf("00Q%d", i), Errors: json.RawMessage(`[]`)}
	}
	return out, nil
}

type countingOpener struct {
	session *fakeSession
	err     error
	opens   int
}

func (o *countingOpener) Open(context.Context) (Session, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

type recordedObservation struct {
	tool, outcome string
}

type fakeObserver struct{ seen []recordedObservation }

func (f *fakeObserver) ObserveCall(tool, outcome string, _ time.Duration) {
	f.seen = append(f.seen, recordedObservation{tool, outcome})
}

func newTestDispatcher(s *fakeSession, opts ...Option) (*Dispatcher, *countingOpener) {
	o := &countingOpener{session: s}
	return NewDispatcher(o, opts...), o
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestCatalog(t *testing.T) {
	d, _ := newTestDispatcher(&fakeSession{})
	names := map[string]Permission{}
	for _, tool := range d.Tools() {
		names[tool.Name] = tool.Permission
		assert.True(t, strings.HasPrefix(tool.Name, Prefix))
		assert.NotNil(t, tool.Handler, tool.Name)
	}
	assert.Len(t, names, 13)
	assert.Equal(t, ReadOnly, names["salesforce_query"])
	assert.Equal(t, ReadWrite, names["salesforce_bulk_create"])
	assert.Equal(t, ReadWrite, names["salesforce_delete_record"])

	tool, ok := d.Lookup("get_record_count")
	require.True(t, ok)
	assert.Equal(t, "salesforce_get_record_count", tool.Name)
}

func TestDispatcher_Query(t *testing.T) {
	s := &fakeSession{results: map[string]*salesforce.QueryResult{
		"SELECT Id FROM Account WHERE Name = 'Acme'": {
			TotalSize: 1, Done: true, NextRecordsURL: "/next",
			Records: []json.RawMessage{json.RawMessage(`{"Id":"001"}`)},
		},
	}}
	d, _ := newTestDispatcher(s)

	out := d.CallJSON(context.Background(), "salesforce_query", Args{"query": `SELECT Id FROM Account WHERE Name = "Acme"`})
	m := decode(t, out)
	assert.Len(t, m, 3)
	assert.Equal(t, float64(1), m["totalSize"])
	assert.Equal(t, true, m["done"])
	assert.Equal(t, []any{map[string]any{"Id": "001"}}, m["records"])
	assert.True(t, strings.HasPrefix(out, "{\n  \""), "indented output")
}

func TestDispatcher_Search(t *testing.T) {
	s := &fakeSession{}
	d, _ := newTestDispatcher(s)

	out := d.CallJSON(context.Background(), "salesforce_search", Args{"search_term": "Acme"})
	assert.Equal(t, map[string]any{"message": "No results found"}, decode(t, out))
	assert.Equal(t, []string{"FIND {Acme}"}, s.searches)

	s.search = json.RawMessage(`{"searchRecords":[{"Id":"001"}]}`)
	out = d.CallJSON(context.Background(), "salesforce_search", Args{"search_term": "Acme"})
	assert.Contains(t, decode(t, out), "searchRecords")

	s.search = json.RawMessage(`[]`)
	out = d.CallJSON(context.Background(), "salesforce_search", Args{"search_term": "Acme"})
	assert.JSONEq(t, `[]`, out)
}

func TestDispatcher_RecordCRUD(t *testing.T) {
	s := &fakeSession{deleteCode: 204}
	d, _ := newTestDispatcher(s)
	ctx := context.Background()

	out := d.CallJSON(ctx, "salesforce_create_record", Args{"object_type": "Account", "record_data": `{"Name":"Acme"}`})
	assert.Equal(t, "001xx", decode(t, out)["id"])
	assert.Equal(t, map[string]any{"Name": "Acme"}, s.created)

	out = d.CallJSON(ctx, "salesforce_update_record", Args{"object_type": "Account", "record_id": "001xx", "record_data": `{"Name":"Acme 2"}`})
	assert.Equal(t, map[string]any{"success": true, "status_code": float64(204)}, decode(t, out))
	assert.Equal(t, "001xx", s.updatedID)

	out = d.CallJSON(ctx, "salesforce_delete_record", Args{"object_type": "Account", "record_id": "001xx"})
	assert.Equal(t, map[string]any{"success": true, "status_code": float64(204)}, decode(t, out))

	out = d.CallJSON(ctx, "salesforce_get_record", Args{"object_type": "Contact", "record_id": "003xx"})
	assert.Equal(t, "003xx", decode(t, out)["Id"])

	out = d.CallJSON(ctx, "salesforce_upsert_record", Args{
		"object_type": "Account", "external_id_field": "Ext_Id__c", "external_id_value": "E-1", "record_data": `{"Name":"Acme"}`,
	})
	assert.Equal(t, "Ext_Id__c/E-1", s.upsertKey)
	assert.Equal(t, true, decode(t, out)["created"])
}

func TestDispatcher_RemoteErrorBecomesErrorObject(t *testing.T) {
	s := &fakeSession{}
	d, _ := newTestDispatcher(s)

	res := d.Call(context.Background(), "salesforce_delete_record", Args{"object_type": "Account", "record_id": "001missing"})
	require.False(t, res.OK())
	assert.Equal(t, types.KindRemote, res.Kind())
	assert.Equal(t,
		map[string]any{"error": "NOT_FOUND: The requested resource does not exist (status 404)"},
		decode(t, res.JSON()))
}

func TestDispatcher_MalformedRecordData(t *testing.T) {
	d, o := newTestDispatcher(&fakeSession{})
	res := d.Call(context.Background(), "salesforce_create_record", Args{"object_type": "Account", "record_data": `{"Name":`})
	assert.Equal(t, types.KindValidation, res.Kind())
	assert.Contains(t, decode(t, res.JSON())["error"], "record_data")
	assert.Equal(t, 0, o.opens, "no login for invalid input")
}

func TestDispatcher_BulkCreate(t *testing.T) {
	s := &fakeSession{}
	d, _ := newTestDispatcher(s)

	out := d.CallJSON(context.Background(), "salesforce_bulk_create", Args{
		"object_type": "Lead", "records_data": `[{"LastName":"A","Company":"X"},{"LastName":"B","Company":"X"}]`,
	})
	assert.Equal(t, salesforce.DefaultBulkBatchSize, s.bulkBatch)
	assert.Equal(t, 10000, s.bulkBatch)
	assert.Equal(t, 2, s.bulkCount)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 2)

	d.CallJSON(context.Background(), "salesforce_bulk_create", Args{
		"object_type": "Lead", "records_data": `[{"LastName":"A"}]`, "batch_size": float64(500),
	})
	assert.Equal(t, 500, s.bulkBatch)

	res := d.Call(context.Background(), "salesforce_bulk_create", Args{
		"object_type": "Lead", "records_data": `[{"LastName":"A"}]`, "batch_size": float64(0),
	})
	assert.Equal(t, types.KindValidation, res.Kind())
}

func TestDispatcher_DescribeAndList(t *testing.T) {
	s := &fakeSession{
		describe: describePayload(3),
		global:   json.RawMessage(`{"sobjects":[{"name":"Account","label":"Account"}]}`),
	}
	d, _ := newTestDispatcher(s)

	m := decode(t, d.CallJSON(context.Background(), "salesforce_describe_object", Args{"object_type": "Widget__c"}))
	assert.Len(t, m["fields"], 3)

	m = decode(t, d.CallJSON(context.Background(), "salesforce_list_objects", nil))
	objs := m["objects"].([]any)
	require.Len(t, objs, 1)
	assert.Equal(t, false, objs[0].(map[string]any)["custom"])
}

func TestDispatcher_RecentRecords(t *testing.T) {
	s := &fakeSession{}
	d, _ := newTestDispatcher(s)

	d.CallJSON(context.Background(), "salesforce_get_recent_records", Args{"object_type": "Opportunity"})
	d.CallJSON(context.Background(), "salesforce_get_recent_records", Args{"object_type": "Opportunity", "limit": float64(3)})
	assert.Equal(t, []string{
		"SELECT Id, Name, CreatedDate FROM Opportunity ORDER BY CreatedDate DESC LIMIT 10",
		"SELECT Id, Name, CreatedDate FROM Opportunity ORDER BY CreatedDate DESC LIMIT 3",
	}, s.queries)

	res := d.Call(context.Background(), "salesforce_get_recent_records", Args{"object_type": "Opportunity", "limit": float64(-1)})
	assert.Equal(t, types.KindValidation, res.Kind())
}

func TestDispatcher_UserInfo(t *testing.T) {
	primary := BuildUserQuery("005xx")
	tests := []struct {
		name        string
		session     *fakeSession
		wantQueries []string
		wantTotal   float64
	}{
		{
			name: "known user",
			session: &fakeSession{userID: "005xx", results: map[string]*salesforce.QueryResult{
				primary: {TotalSize: 1, Done: true, Records: []json.RawMessage{json.RawMessage(`{"Id":"005xx"}`)}},
			}},
			wantQueries: []string{primary},
			wantTotal:   1,
		},
		{
			name: "no rows falls back",
			session: &fakeSession{userID: "005xx", results: map[string]*salesforce.QueryResult{
				FallbackUserQuery: {TotalSize: 1, Done: true, Records: []json.RawMessage{json.RawMessage(`{"Id":"005aa"}`)}},
			}},
			wantQueries: []string{primary, FallbackUserQuery},
			wantTotal:   1,
		},
		{
			name: "unknown id falls back",
			session: &fakeSession{userErr: errors.New("userinfo unavailable"), results: map[string]*salesforce.QueryResult{
				FallbackUserQuery: {TotalSize: 1, Done: true, Records: []json.RawMessage{json.RawMessage(`{"Id":"005aa"}`)}},
			}},
			wantQueries: []string{FallbackUserQuery},
			wantTotal:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDispatcher(tt.session)
			m := decode(t, d.CallJSON(context.Background(), "salesforce_get_user_info", Args{}))
			assert.Equal(t, tt.wantTotal, m["totalSize"])
			assert.Equal(t, tt.wantQueries, tt.session.queries)
		})
	}
}

func TestDispatcher_UserInfoLogsLookupFailure(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := &fakeSession{userErr: errors.New("INVALID_SESSION_ID"), results: map[string]*salesforce.QueryResult{
		FallbackUserQuery: {TotalSize: 1, Done: true, Records: []json.RawMessage{json.RawMessage(`{"Id":"005aa"}`)}},
	}}
	d, _ := newTestDispatcher(s, WithLogger(log))

	res := d.Call(context.Background(), "salesforce_get_user_info", Args{})
	require.True(t, res.OK())
	assert.Contains(t, buf.String(), "current user lookup failed")
	assert.Contains(t, buf.String(), "INVALID_SESSION_ID")
}

func TestDispatcher_RecordCount(t *testing.T) {
	s := &fakeSession{results: map[string]*salesforce.QueryResult{}}
	s.results["SELECT COUNT() FROM Contact"] = &salesforce.QueryResult{TotalSize: 42, Done: true}
	s.results["SELECT COUNT() FROM Contact WHERE CreatedDate = TODAY"] = &salesforce.QueryResult{TotalSize: 3, Done: true}
	d, _ := newTestDispatcher(s)

	m := decode(t, d.CallJSON(context.Background(), "salesforce_get_record_count", Args{"object_type": "Contact", "where_clause": ""}))
	assert.Equal(t, map[string]any{"object_type": "Contact", "count": float64(42), "where_clause": nil}, m)

	m = decode(t, d.CallJSON(context.Background(), "salesforce_get_record_count", Args{"object_type": "Contact", "where_clause": "CreatedDate = TODAY"}))
	assert.Equal(t, map[string]any{"object_type": "Contact", "count": float64(3), "where_clause": "CreatedDate = TODAY"}, m)
}

func TestDispatcher_UnsupportedObjectType(t *testing.T) {
	d, o := newTestDispatcher(&fakeSession{}, WithObjects(salesforce.NewObjectTable([]string{"Account"})))

	res := d.Call(context.Background(), "salesforce_get_record_count", Args{"object_type": "Contact; DELETE"})
	assert.Equal(t, types.KindConfig, res.Kind())
	res = d.Call(context.Background(), "salesforce_get_record_count", Args{"object_type": "Contact"})
	assert.Equal(t, types.KindConfig, res.Kind())
	assert.Contains(t, res.Err.Error(), "unsupported object type")
	assert.Equal(t, 0, o.opens)
}

func TestDispatcher_LoginFailure(t *testing.T) {
	o := &countingOpener{err: types.WrapAuth(errors.New("INVALID_LOGIN: bad password"), "failed to connect")}
	d := NewDispatcher(o)

	res := d.Call(context.Background(), "salesforce_list_objects", nil)
	assert.Equal(t, types.KindAuth, res.Kind())
	assert.Equal(t, map[string]any{"error": "failed to connect: INVALID_LOGIN: bad password"}, decode(t, res.JSON()))
}

func TestDispatcher_PanicBecomesError(t *testing.T) {
	obs := &fakeObserver{}
	d, _ := newTestDispatcher(&fakeSession{panicOn: "query"}, WithObserver(obs))

	var res Result
	require.NotPanics(t, func() {
		res = d.Call(context.Background(), "salesforce_query", Args{"query": "SELECT Id FROM Account"})
	})
	require.False(t, res.OK())
	assert.Contains(t, decode(t, res.JSON())["error"], "nil map")
	assert.Equal(t, []recordedObservation{{"salesforce_query", "remote"}}, obs.seen)
}

func TestDispatcher_UnknownToolAndMissingArgs(t *testing.T) {
	obs := &fakeObserver{}
	d, o := newTestDispatcher(&fakeSession{}, WithObserver(obs))

	res := d.Call(context.Background(), "salesforce_merge_records", Args{})
	assert.Equal(t, types.KindValidation, res.Kind())
	assert.Contains(t, res.JSON(), "unknown tool")

	res = d.Call(context.Background(), "salesforce_query", Args{"query": "   "})
	assert.Equal(t, types.KindValidation, res.Kind())
	assert.Equal(t, map[string]any{"error": "validation: query required"}, decode(t, res.JSON()))

	assert.Equal(t, 0, o.opens)
	assert.Equal(t, []recordedObservation{
		{"salesforce_merge_records", "validation"},
		{"salesforce_query", "validation"},
	}, obs.seen)
}

func TestDispatcher_FreshSessionPerCall(t *testing.T) {
	d, o := newTestDispatcher(&fakeSession{userID: "005xx"})
	d.Call(context.Background(), "salesforce_get_user_info", nil)
	d.Call(context.Background(), "salesforce_get_user_info", nil)
	assert.Equal(t, 2, o.opens, "one login per call, none shared")
}
