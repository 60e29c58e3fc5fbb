package resolver

import (
	"context"
	"testing"
	"time"

	"metric-agent/catalog"
)

func heuristicSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := catalog.New(fakeCatalogSource{}, time.Minute).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func TestParseQuestion(t *testing.T) {
	snap := heuristicSnapshot(t)

	tests := []struct {
		name        string
		question    string
		wantYear    int
		wantQuarter int
		wantCompany string
		wantMetric  string
	}{
		{
			name:        "full question",
			question:    "示例集团2024年Q3营业收入是多少",
			wantYear:    2024,
			wantQuarter: 3,
			wantCompany: "示例集团",
			wantMetric:  "营业收入",
		},
		{
			name:        "chinese quarter",
			question:    "远洋港口公司2023年第四季的净利润",
			wantYear:    2023,
			wantQuarter: 4,
			wantCompany: "远洋港口公司",
			wantMetric:  "净利润",
		},
		{
			name:        "lowercase quarter marker",
			question:    "q2的收入怎么样",
			wantQuarter: 2,
			wantMetric:  "营业收入",
		},
		{
			name:        "company suffix variants",
			question:    "宏图地产公司的ROE",
			wantCompany: "宏图地产公司",
			wantMetric:  "净资产收益率",
		},
		{
			name:     "no slots",
			question: "帮我看看整体情况",
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuestion(snap, tt.question)
			if got.Year != tt.wantYear {
				t.Errorf("year = %d, want %d", got.Year, tt.wantYear)
			}
			if got.Quarter != tt.wantQuarter {
				t.Errorf("quarter = %d, want %d", got.Quarter, tt.wantQuarter)
			}
			if got.Company != tt.wantCompany {
				t.Errorf("company = %q, want %q", got.Company, tt.wantCompany)
			}
			if got.Metric != tt.wantMetric {
				t.Errorf("metric = %q, want %q", got.Metric, tt.wantMetric)
			}
		})
	}
}

func TestParseQuestionNilSnapshot(t *testing.T) {
	got := ParseQuestion(nil, "示例集团2024年Q3营业收入是多少")
	if got.Year != 2024 || got.Quarter != 3 || got.Company != "示例集团" {
		t.Errorf("got %+v, want year/quarter/company without a catalog", got)
	}
	if got.Metric != "" {
		t.Errorf("metric = %q, want empty without a catalog", got.Metric)
	}
}
