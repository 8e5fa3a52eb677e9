//go:build cgo || windows

package mssql

// регистрация ODBC-моста под именем "odbc"; пакет odbc требует cgo
// (unixODBC) вне Windows, поэтому импорт вынесен под build-тег
import (
	_ "github.com/alexbrainman/odbc"
)
