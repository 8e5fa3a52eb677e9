package mssql

import (
	"reflect"
	"testing"
)

// Сегментация и обратная сборка составных имён — чистая часть
// экранирования, сам QUOTENAME выполняется сервером.
func TestReassemble(t *testing.T) {
	tests := []struct {
		names  []string
		quoted []string
		want   []SafeIdent
	}{
		{
			names:  []string{"orders"},
			quoted: []string{"[orders]"},
			want:   []SafeIdent{"[orders]"},
		},
		{
			names:  []string{"dbo.orders", "audit"},
			quoted: []string{"[dbo]", "[orders]", "[audit]"},
			want:   []SafeIdent{"[dbo].[orders]", "[audit]"},
		},
		{
			names:  []string{"a.b.c"},
			quoted: []string{"[a]", "[b]", "[c]"},
			want:   []SafeIdent{"[a].[b].[c]"},
		},
	}
	for _, tt := range tests {
		var seps []string
		for _, name := range tt.names {
			seps = append(seps, dotRuns.FindAllString(name, -1)...)
			seps = append(seps, identTerm)
		}
		got := reassemble(tt.quoted, seps)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("reassemble(%v) = %v, want %v", tt.names, got, tt.want)
		}
	}
}

func TestInvalidLengthObjectNameError(t *testing.T) {
	err := &InvalidLengthObjectNameError{Name: "x"}
	if err.Error() != "SQL object name is too long: x" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if (&InvalidLengthObjectNameError{}).Error() != "SQL object name is too long" {
		t.Error("empty name must produce the generic message")
	}
}
