package catalog

import (
	"reflect"
	"testing"
)

func sptr(s string) *string { return &s }

func TestParseAliasField(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want []string
	}{
		{
			name: "nil input",
			raw:  nil,
			want: nil,
		},
		{
			name: "empty string",
			raw:  sptr("   "),
			want: nil,
		},
		{
			name: "json array",
			raw:  sptr(`["营收", "收入", "营业总收入"]`),
			want: []string{"营收", "收入", "营业总收入"},
		},
		{
			name: "postgres array literal",
			raw:  sptr(`{营收,收入}`),
			want: []string{"营收", "收入"},
		},
		{
			name: "comma separated",
			raw:  sptr("营收,收入"),
			want: []string{"营收", "收入"},
		},
		{
			name: "chinese comma and pipe",
			raw:  sptr("营收，收入|REV"),
			want: []string{"营收", "收入", "REV"},
		},
		{
			name: "quoted fallback entries",
			raw:  sptr(`"营收", '收入'`),
			want: []string{"营收", "收入"},
		},
		{
			name: "whitespace separated",
			raw:  sptr("营收 收入"),
			want: []string{"营收", "收入"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAliasField(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAliasField() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompanyVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "group company suffix",
			in:   "示例集团公司",
			want: []string{"示例集团公司", "示例集团"},
		},
		{
			name: "plain company suffix",
			in:   "示例公司",
			want: []string{"示例公司", "示例"},
		},
		{
			name: "no suffix",
			in:   "示例集团",
			want: []string{"示例集团"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompanyVariants(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CompanyVariants() = %v, want %v", got, tt.want)
			}
		})
	}
}
