package adapters_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ruslano69/mssqlframe/pkg/adapters"
	"github.com/ruslano69/mssqlframe/pkg/adapters/sqlite"
)

// BenchmarkFactory_CreateSource измеряет производительность создания источника через фабрику
func BenchmarkFactory_CreateSource(b *testing.B) {
	ctx := context.Background()
	cfg := adapters.Config{
		Type: "sqlite",
		DSN:  "file:" + filepath.Join(b.TempDir(), "bench.db"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		source, err := adapters.New(ctx, cfg)
		if err != nil {
			b.Fatalf("Failed to create source: %v", err)
		}
		source.Close(ctx)
	}
}

// BenchmarkFactory_Registry измеряет операции реестра
func BenchmarkFactory_Registry(b *testing.B) {
	b.Run("IsRegistered", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			adapters.IsRegistered("sqlite")
		}
	})

	b.Run("GetRegisteredTypes", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			adapters.GetRegisteredTypes()
		}
	})

	b.Run("NewWithoutConnect", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := adapters.NewWithoutConnect("sqlite"); err != nil {
				b.Fatalf("NewWithoutConnect failed: %v", err)
			}
		}
	})
}

// BenchmarkSource_Read измеряет чтение кадров из SQLite
func BenchmarkSource_Read(b *testing.B) {
	ctx := context.Background()
	source, err := adapters.New(ctx, adapters.Config{
		Type: "sqlite",
		DSN:  "file:" + filepath.Join(b.TempDir(), "read_bench.db"),
	})
	if err != nil {
		b.Fatalf("Failed to create source: %v", err)
	}
	defer source.Close(ctx)

	db := source.(*sqlite.Source).DB()
	if _, err := db.ExecContext(ctx, "CREATE TABLE bench (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		b.Fatalf("Failed to create table: %v", err)
	}
	for i := 0; i < 1000; i++ {
		if _, err := db.ExecContext(ctx, "INSERT INTO bench VALUES (?, 'row')", i); err != nil {
			b.Fatalf("Failed to insert row: %v", err)
		}
	}

	b.Run("ReadTable", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.ReadTable(ctx, "bench", 0); err != nil {
				b.Fatalf("ReadTable failed: %v", err)
			}
		}
	})

	b.Run("ReadFrameFiltered", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := source.ReadFrame(ctx, "SELECT * FROM bench WHERE id < ?", 100); err != nil {
				b.Fatalf("ReadFrame failed: %v", err)
			}
		}
	})
}
