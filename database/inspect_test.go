package database

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectTables(mock pgxmock.PgxPoolIface, tables ...string) {
	rows := pgxmock.NewRows([]string{"table_name"})
	for _, t := range tables {
		rows.AddRow(t)
	}
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("public").WillReturnRows(rows)
}

func expectColumns(mock pgxmock.PgxPoolIface, table string, cols ...column) {
	rows := pgxmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "pk"})
	for _, c := range cols {
		rows.AddRow(c.Name, c.DataType, c.MaxLength, c.PrimaryKey)
	}
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", table).WillReturnRows(rows)
}

func expectScalar(mock pgxmock.PgxPoolIface, sql string, value any) {
	mock.ExpectQuery(regexp.QuoteMeta(sql)).WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(value))
}

func checkExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForeignKeyDependencies(t *testing.T) {
	t.Run("Creation Order", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "comments", "posts", "users")
		mock.ExpectQuery("FOREIGN KEY").WithArgs("public").WillReturnRows(
			pgxmock.NewRows([]string{"table_name", "referred_table"}).
				AddRow("comments", "posts").
				AddRow("comments", "users").
				AddRow("posts", "users").
				AddRow("posts", "audit_log"))

		deps, err := ForeignKeyDependencies(context.Background(), mock, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"users", "posts", "comments"}
		if !slices.Equal(deps.OrderedTables, want) {
			t.Errorf("expected order %v, got %v", want, deps.OrderedTables)
		}
		if !slices.Equal(deps.Dependencies["comments"], []string{"posts", "users"}) {
			t.Errorf("unexpected comments dependencies %v", deps.Dependencies["comments"])
		}
		if !slices.Equal(deps.Dependents["users"], []string{"comments", "posts"}) {
			t.Errorf("unexpected users dependents %v", deps.Dependents["users"])
		}
		if len(deps.Dependencies["users"]) != 0 {
			t.Errorf("users should have no dependencies, got %v", deps.Dependencies["users"])
		}
		if len(deps.CircularDependencies) != 0 {
			t.Errorf("expected no cycles, got %v", deps.CircularDependencies)
		}
		checkExpectations(t, mock)
	})

	t.Run("Cycle Reported", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "a", "b")
		mock.ExpectQuery("FOREIGN KEY").WithArgs("public").WillReturnRows(
			pgxmock.NewRows([]string{"table_name", "referred_table"}).
				AddRow("a", "b").
				AddRow("b", "a"))

		deps, err := ForeignKeyDependencies(context.Background(), mock, "public")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(deps.CircularDependencies, []string{"a"}) {
			t.Errorf("expected cycle at a, got %v", deps.CircularDependencies)
		}
		if len(deps.OrderedTables) != 2 {
			t.Errorf("every table must still be ordered, got %v", deps.OrderedTables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM information_schema.tables").WillReturnError(errors.New("boom"))

		if _, err := ForeignKeyDependencies(context.Background(), mock, ""); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFindDuplicateIndexes(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM pg_index").WithArgs("public").WillReturnRows(
		pgxmock.NewRows([]string{"table", "index", "unique", "columns"}).
			AddRow("orders", "orders_pkey", true, []string{"id"}).
			AddRow("users", "idx_a", false, []string{"email"}).
			AddRow("users", "idx_b", false, []string{"email"}).
			AddRow("users", "idx_c", false, []string{"email", "name"}))

	report, err := FindDuplicateIndexes(context.Background(), mock, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary != (IndexSummary{TotalIndexes: 4, DuplicateGroups: 1, RedundantCount: 2}) {
		t.Errorf("unexpected summary %+v", report.Summary)
	}
	group := report.ExactDuplicates[0]
	if len(group.Indexes) != 2 || group.Indexes[0].Name != "idx_a" || group.Indexes[1].Name != "idx_b" {
		t.Errorf("unexpected duplicate group %+v", group)
	}
	if group.Recommendation != "Keep idx_a and drop idx_b" {
		t.Errorf("unexpected recommendation %q", group.Recommendation)
	}
	first := report.Redundant[0]
	if first.RedundantIndex != "idx_a" || first.CoveredBy != "idx_c" {
		t.Errorf("unexpected redundant entry %+v", first)
	}
	if first.Reason != "Index idx_a is redundant - idx_c starts with same columns" {
		t.Errorf("unexpected reason %q", first.Reason)
	}
	checkExpectations(t, mock)
}

func TestTableSizes(t *testing.T) {
	t.Run("Sorted By Total Size", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "big", "small")
		expectScalar(mock, `SELECT COUNT(*) FROM "public"."big"`, int64(1000))
		mock.ExpectQuery("pg_table_size").WithArgs(`"public"."big"`).WillReturnRows(
			pgxmock.NewRows([]string{"data", "index", "total"}).AddRow(int64(2*1024*1024), int64(1024*1024), int64(3*1024*1024)))
		expectScalar(mock, `SELECT COUNT(*) FROM "public"."small"`, int64(10))
		mock.ExpectQuery("pg_table_size").WithArgs(`"public"."small"`).WillReturnRows(
			pgxmock.NewRows([]string{"data", "index", "total"}).AddRow(int64(8192), int64(8192), int64(16384)))

		sizes, err := TableSizes(context.Background(), mock, TableSizeOptions{Tables: []string{"big", "small", "missing"}, IncludeIndexes: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sizes) != 2 {
			t.Fatalf("expected 2 tables, got %d", len(sizes))
		}
		if sizes[0].TableName != "big" || sizes[0].RowCount != 1000 {
			t.Errorf("expected big first, got %+v", sizes[0])
		}
		if sizes[0].TotalSizeMB != 3 || sizes[0].TotalSize != "3.0 MB" {
			t.Errorf("unexpected size fields %+v", sizes[0])
		}
		if sizes[1].IndexSizeBytes != 8192 || sizes[1].IndexSize != "8.0 KB" {
			t.Errorf("unexpected index size %+v", sizes[1])
		}
		checkExpectations(t, mock)
	})

	t.Run("Failure Reports Zeros", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "broken")
		mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("permission denied"))

		sizes, err := TableSizes(context.Background(), mock, TableSizeOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sizes) != 1 || sizes[0].TotalSizeBytes != 0 {
			t.Errorf("expected a zero entry, got %+v", sizes)
		}
	})
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:                  "0 B",
		512:                "512 B",
		1536:               "1.5 KB",
		5 * 1024 * 1024:    "5.0 MB",
		3 << 30:            "3.0 GB",
		1024*1024*1024 - 1: "1024.0 MB",
	}
	for n, want := range cases {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestAnalyzeColumnCardinality(t *testing.T) {
	t.Run("Classification", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "users")
		expectScalar(mock, `SELECT COUNT(*) FROM "public"."users"`, int64(1000))
		expectColumns(mock, "users",
			column{Name: "id", DataType: "integer", PrimaryKey: true},
			column{Name: "email", DataType: "text"},
			column{Name: "status", DataType: "character varying", MaxLength: 20},
		)
		mock.ExpectQuery(`COUNT\(DISTINCT "email"\)`).WillReturnRows(
			pgxmock.NewRows([]string{"nulls", "distinct"}).AddRow(int64(0), int64(1000)))
		mock.ExpectQuery(`COUNT\(DISTINCT "status"\)`).WillReturnRows(
			pgxmock.NewRows([]string{"nulls", "distinct"}).AddRow(int64(200), int64(4)))
		mock.ExpectQuery(`GROUP BY "status"`).WillReturnRows(
			pgxmock.NewRows([]string{"value", "count"}).
				AddRow("active", int64(600)).
				AddRow("NULL", int64(200)))

		results, err := AnalyzeColumnCardinality(context.Background(), mock, CardinalityOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 columns, got %d", len(results))
		}
		status, email := results[0], results[1]
		if status.ColumnName != "status" || status.Category != CardinalityLow {
			t.Errorf("expected low status first, got %+v", status)
		}
		if status.CardinalityRatio != 0.005 || status.NullPercentage != 20 {
			t.Errorf("unexpected ratios %+v", status)
		}
		if len(status.TopValues) != 2 || status.TopValues[0].Value != "active" {
			t.Errorf("unexpected top values %+v", status.TopValues)
		}
		if email.Category != CardinalityHigh || email.TopValues != nil {
			t.Errorf("unexpected email result %+v", email)
		}
		checkExpectations(t, mock)
	})

	t.Run("Threshold Validation", func(t *testing.T) {
		cases := []struct {
			opts CardinalityOptions
			msg  string
		}{
			{CardinalityOptions{LowThreshold: 1.5}, "low_cardinality_threshold must be between 0 and 1"},
			{CardinalityOptions{HighThreshold: 2}, "high_cardinality_threshold must be between 0 and 1"},
			{CardinalityOptions{LowThreshold: 0.5, HighThreshold: 0.4}, "low_cardinality_threshold must be less than high_cardinality_threshold"},
			{CardinalityOptions{SampleSize: -1}, "sample_size must be positive"},
		}
		for _, tc := range cases {
			_, err := AnalyzeColumnCardinality(context.Background(), nil, tc.opts)
			if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("expected %q, got %v", tc.msg, err)
			}
		}
	})
}

func TestCheckDataAnomalies(t *testing.T) {
	t.Run("Detects Anomalies", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "orders")
		expectScalar(mock, `SELECT COUNT(*) FROM "public"."orders"`, int64(100))
		expectColumns(mock, "orders",
			column{Name: "id", DataType: "integer", PrimaryKey: true},
			column{Name: "flag", DataType: "text"},
			column{Name: "notes", DataType: "text"},
			column{Name: "amount", DataType: "numeric"},
		)
		expectScalar(mock, `WHERE "flag" IS NULL`, int64(10))
		expectScalar(mock, `COUNT(DISTINCT "flag")`, int64(1))
		expectScalar(mock, `SELECT "flag"::text`, "yes")
		expectScalar(mock, `WHERE "notes" IS NULL`, int64(100))
		expectScalar(mock, `WHERE "amount" IS NULL`, int64(0))
		expectScalar(mock, `COUNT(DISTINCT "amount")`, int64(50))
		mock.ExpectQuery(`STDDEV`).WillReturnRows(
			pgxmock.NewRows([]string{"mean", "stddev", "min", "max"}).AddRow(10.0, 2.0, 1.0, 40.0))
		mock.ExpectQuery(`"amount" < \$1`).WithArgs(4.0, 16.0).WillReturnRows(
			pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

		anomalies, err := CheckDataAnomalies(context.Background(), mock, AnomalyOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(anomalies) != 3 {
			t.Fatalf("expected 3 anomalies, got %+v", anomalies)
		}
		if anomalies[0].Type != AnomalyAllNull || anomalies[0].ColumnName != "notes" {
			t.Errorf("expected all_null first, got %+v", anomalies[0])
		}
		if anomalies[1].Type != AnomalyAllSameValue || anomalies[1].Details["value"] != "yes" {
			t.Errorf("unexpected second anomaly %+v", anomalies[1])
		}
		if anomalies[2].Type != AnomalyStatisticalOutliers || anomalies[2].Severity != SeverityMedium {
			t.Errorf("unexpected outlier anomaly %+v", anomalies[2])
		}
		checkExpectations(t, mock)
	})

	t.Run("Skipped Checks", func(t *testing.T) {
		mock := newMock(t)
		expectTables(mock, "orders")
		expectScalar(mock, `SELECT COUNT(*) FROM "public"."orders"`, int64(100))
		expectColumns(mock, "orders",
			column{Name: "flag", DataType: "text"},
			column{Name: "amount", DataType: "numeric"},
		)
		expectScalar(mock, `WHERE "flag" IS NULL`, int64(10))
		expectScalar(mock, `WHERE "amount" IS NULL`, int64(0))

		anomalies, err := CheckDataAnomalies(context.Background(), mock, AnomalyOptions{SkipAllSame: true, SkipOutliers: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(anomalies) != 0 {
			t.Errorf("expected no anomalies, got %+v", anomalies)
		}
		checkExpectations(t, mock)
	})

	t.Run("Threshold Validation", func(t *testing.T) {
		_, err := CheckDataAnomalies(context.Background(), nil, AnomalyOptions{OutlierThreshold: -1})
		if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "outlier_std_threshold must be positive") {
			t.Errorf("unexpected error %v", err)
		}
	})
}

// expectDifferingUsers sets up a users table with an id primary key whose
// row count and name checksum differ between src and dst.
func expectDifferingUsers(src, dst pgxmock.PgxPoolIface) {
	cols := []column{
		{Name: "id", DataType: "integer", PrimaryKey: true},
		{Name: "name", DataType: "text"},
	}
	expectTables(src, "users")
	expectColumns(src, "users", cols...)
	expectTables(dst, "users")
	expectColumns(dst, "users", append(cols, column{Name: "extra", DataType: "text"})...)

	expectScalar(src, `SELECT COUNT(*) FROM "public"."users"`, int64(3))
	expectScalar(dst, `SELECT COUNT(*) FROM "public"."users"`, int64(2))
	expectScalar(src, `CAST("id" AS TEXT)`, "aaa")
	expectScalar(dst, `CAST("id" AS TEXT)`, "aaa")
	expectScalar(src, `CAST("name" AS TEXT)`, "bbb")
	expectScalar(dst, `CAST("name" AS TEXT)`, "ccc")
}

func TestCompareTableData(t *testing.T) {
	t.Run("Reports Differences", func(t *testing.T) {
		src, dst := newMock(t), newMock(t)
		expectDifferingUsers(src, dst)
		src.ExpectQuery(regexp.QuoteMeta(`SELECT "id"::text FROM "public"."users" LIMIT 10`)).WillReturnRows(
			pgxmock.NewRows([]string{"id"}).AddRow("1").AddRow("2").AddRow("3"))
		for _, lookup := range []struct {
			key string
			n   int64
		}{{"1", 1}, {"2", 1}, {"3", 0}} {
			dst.ExpectQuery(`WHERE "id"::text = \$1`).WithArgs(lookup.key).
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(lookup.n))
		}

		result, err := CompareTableData(context.Background(), src, dst, CompareOptions{SourceTable: "users"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.CountMatch || result.SourceCount != 3 || result.TargetCount != 2 {
			t.Errorf("unexpected counts %+v", result)
		}
		if !slices.Equal(result.CommonColumns, []string{"id", "name"}) {
			t.Errorf("unexpected common columns %v", result.CommonColumns)
		}
		if !result.ColumnChecksums["id"].Match || result.ColumnChecksums["name"].Match {
			t.Errorf("unexpected checksums %+v", result.ColumnChecksums)
		}
		if len(result.SampleDifferences) != 1 || result.SampleDifferences[0].PrimaryKey != "3" {
			t.Errorf("unexpected differences %+v", result.SampleDifferences)
		}
		checkExpectations(t, src)
		checkExpectations(t, dst)
	})

	t.Run("Sample Limit", func(t *testing.T) {
		src, dst := newMock(t), newMock(t)
		expectDifferingUsers(src, dst)
		src.ExpectQuery(regexp.QuoteMeta(`SELECT "id"::text FROM "public"."users" LIMIT 2`)).WillReturnRows(
			pgxmock.NewRows([]string{"id"}).AddRow("1").AddRow("2"))
		dst.ExpectQuery(`WHERE "id"::text = \$1`).WithArgs("1").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		dst.ExpectQuery(`WHERE "id"::text = \$1`).WithArgs("2").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		result, err := CompareTableData(context.Background(), src, dst, CompareOptions{SourceTable: "users", SampleDifferences: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.SampleDifferences) != 2 {
			t.Errorf("unexpected differences %+v", result.SampleDifferences)
		}
		checkExpectations(t, src)
		checkExpectations(t, dst)
	})

	t.Run("Skip Sampling", func(t *testing.T) {
		src, dst := newMock(t), newMock(t)
		expectDifferingUsers(src, dst)

		result, err := CompareTableData(context.Background(), src, dst, CompareOptions{SourceTable: "users", SkipSampling: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.CountMatch || len(result.SampleDifferences) != 0 {
			t.Errorf("unexpected result %+v", result)
		}
		checkExpectations(t, src)
		checkExpectations(t, dst)
	})

	t.Run("Missing Table", func(t *testing.T) {
		src := newMock(t)
		expectTables(src, "other")
		_, err := CompareTableData(context.Background(), src, src, CompareOptions{SourceTable: "users"})
		if err == nil || err.Error() != "invalid argument: Source table users not found" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Unknown Column", func(t *testing.T) {
		src, dst := newMock(t), newMock(t)
		expectTables(src, "users")
		expectColumns(src, "users", column{Name: "id", DataType: "integer"})
		expectTables(dst, "users")
		expectColumns(dst, "users", column{Name: "id", DataType: "integer"})

		_, err := CompareTableData(context.Background(), src, dst, CompareOptions{SourceTable: "users", Columns: []string{"email"}})
		if err == nil || !strings.Contains(err.Error(), "Column email not found in both tables") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		if _, err := CompareTableData(context.Background(), nil, nil, CompareOptions{SourceTable: "  "}); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
		if _, err := CompareTableData(context.Background(), nil, nil, CompareOptions{SourceTable: "t", SampleDifferences: -1}); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestSuggestDataTypeOptimizations(t *testing.T) {
	mock := newMock(t)
	expectTables(mock, "items")
	expectScalar(mock, `SELECT COUNT(*) FROM "public"."items"`, int64(1_000_000))
	expectColumns(mock, "items",
		column{Name: "code", DataType: "character varying", MaxLength: 255},
		column{Name: "qty", DataType: "integer"},
		column{Name: "created", DataType: "timestamp without time zone"},
	)
	expectScalar(mock, `MAX(LENGTH("code"))`, int64(5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "code"::text`)).WillReturnRows(
		pgxmock.NewRows([]string{"code"}).AddRow("12").AddRow("345"))
	lo, hi := int64(1), int64(100)
	mock.ExpectQuery(`MIN\("qty"\)`).WillReturnRows(
		pgxmock.NewRows([]string{"min", "max"}).AddRow(&lo, &hi))

	suggestions, err := SuggestDataTypeOptimizations(context.Background(), mock, OptimizationOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %+v", suggestions)
	}
	if suggestions[0].SuggestedType != "INTEGER" || suggestions[0].Severity != SeverityHigh {
		t.Errorf("expected numeric string first, got %+v", suggestions[0])
	}
	if suggestions[1].SuggestedType != "VARCHAR(10)" || suggestions[1].CurrentType != "VARCHAR(255)" {
		t.Errorf("unexpected varchar suggestion %+v", suggestions[1])
	}
	if suggestions[2].SuggestedType != "SMALLINT" || suggestions[2].Issue != "Value range 1 to 100 fits in SMALLINT" {
		t.Errorf("unexpected smallint suggestion %+v", suggestions[2])
	}
	checkExpectations(t, mock)

	if _, err := SuggestDataTypeOptimizations(context.Background(), nil, OptimizationOptions{SampleSize: -5}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestBooleanAndNumericDetection(t *testing.T) {
	if !allNumeric([]string{"1,000", "-5", "3.14"}) {
		t.Error("expected numeric values")
	}
	if allNumeric([]string{"12a"}) || allNumeric([]string{"-"}) {
		t.Error("expected non-numeric values")
	}
	distinct, ok := booleanValues([]string{"yes", "NO", "y"})
	if !ok || !slices.Equal(distinct, []string{"NO", "Y", "YES"}) {
		t.Errorf("unexpected boolean detection %v %v", distinct, ok)
	}
	if _, ok := booleanValues([]string{"maybe"}); ok {
		t.Error("maybe is not boolean")
	}
}
