// Package mssql — адаптер Microsoft SQL Server: чтение живой схемы из
// системного каталога, безопасная работа с идентификаторами, сборка
// динамического SQL и конвертация значений между кадром и сервером.
//
// Основные возможности:
//   - экранирование идентификаторов на сервере через QUOTENAME, в том
//     числе составных имён, одним круговым запросом
//   - чтение схемы таблицы из sys.columns, включая временные таблицы
//     в tempdb, с деталями первичного ключа
//   - сборка CREATE TABLE, ALTER, INSERT, UPDATE и MERGE по единой
//     схеме: переменные SYSNAME плюс sp_executesql, без конкатенации
//     пользовательского ввода
//   - классификация ошибок сервера в закрытый набор видов сбоев для
//     цикла согласования схемы
//   - подготовка и разбор значений по таблице правил конвертации
//     с контролем точности до 100 нс
//
// Подключение:
//
//	adapter, err := mssql.Connect(ctx, mssql.Config{
//		DSN: "server=localhost;user id=sa;password=...;database=master",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer adapter.Close()
//
//	f, warns, err := adapter.ReadTable(ctx, "dbo.invoices", mssql.ReadOptions{
//		Where: "amount > 100 AND shipped IS NOT NULL",
//		Limit: 1000,
//	})
//
// Соответствие типов значений:
//
//	SQL Server               | кадр
//	-------------------------|----------------
//	bit                      | bool
//	tinyint..bigint          | int64
//	float                    | float64
//	decimal, numeric         | decimal.Decimal
//	time                     | time.Duration
//	date, datetime, datetime2| time.Time
//	datetimeoffset           | time.Time
//	char, varchar            | string
//	nchar, nvarchar          | string
//	varbinary                | []byte
//
// Типы вне таблицы правил читаются строками с предупреждением.
package mssql
