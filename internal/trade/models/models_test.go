package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesync/pkg/platform/sentinel"
)

func TestPartyKindOf(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       PartyKind
		wantErr    error
	}{
		{name: "9 digits is legal", identifier: "123456789", want: PartyLegal},
		{name: "14 digits is individual", identifier: "12345678901234", want: PartyIndividual},
		{name: "empty", identifier: "", wantErr: ErrMissingIdentifier},
		{name: "8 digits", identifier: "12345678", wantErr: ErrInvalidIdentifier},
		{name: "10 digits", identifier: "1234567890", wantErr: ErrInvalidIdentifier},
		{name: "15 digits", identifier: "123456789012345", wantErr: ErrInvalidIdentifier},
		{name: "letters", identifier: "12345678A", wantErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PartyKindOf(tt.identifier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInboundRecordDecoding(t *testing.T) {
	payload := `{"resList":[{"g01A":"ИМ","g33A":"8471300000","g46":1500.500,"g15_17":"CN","inn":" 123456789 ","g54D":"05.03.24"}],
		"error":null,"totalPages":3,"totalElements":1120}`

	var page PageResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &page))
	require.Len(t, page.Records, 1)
	assert.Equal(t, 3, page.TotalPages)
	assert.EqualValues(t, 1120, page.TotalElements)

	record, err := page.Records[0].ToTradeRecord()
	require.NoError(t, err)
	assert.Equal(t, OperationImport, record.Operation)
	assert.Equal(t, PartyLegal, record.PartyKind)
	assert.Equal(t, "123456789", record.Identifier)
	assert.Equal(t, "2024-03-05", record.DeclarationDate.Format(DateLayout))
	assert.Equal(t, "1500.5", NormalizeValue(record.Value))
	assert.Len(t, record.Hash, 64)
}

func TestToTradeRecordRejects(t *testing.T) {
	base := InboundRecord{Operation: "ЭК", CommodityCode: "0101", CountryCode: "KZ", Identifier: "12345678901234", DeclarationDate: "2024-01-02"}

	ok, err := base.ToTradeRecord()
	require.NoError(t, err)
	assert.Equal(t, OperationExport, ok.Operation)
	assert.Equal(t, PartyIndividual, ok.PartyKind)

	t.Run("blank identifier", func(t *testing.T) {
		in := base
		in.Identifier = "   "
		_, err := in.ToTradeRecord()
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})
	t.Run("wrong length", func(t *testing.T) {
		in := base
		in.Identifier = "1234"
		_, err := in.ToTradeRecord()
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})
	t.Run("unknown operation", func(t *testing.T) {
		in := base
		in.Operation = "TR"
		_, err := in.ToTradeRecord()
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
	t.Run("bad date", func(t *testing.T) {
		in := base
		in.DeclarationDate = "31/12/2024"
		_, err := in.ToTradeRecord()
		assert.ErrorIs(t, err, ErrInvalidDate)
	})
	t.Run("every rejection is invalid input", func(t *testing.T) {
		in := base
		in.Operation = "TR"
		_, err := in.ToTradeRecord()
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})
}

func TestToTradeRecordValueScale(t *testing.T) {
	raw := decimal.NewNullDecimal(decimal.RequireFromString("100.12345"))
	in := InboundRecord{Operation: "ИМ", CommodityCode: "0101", Value: raw, CountryCode: "CN", Identifier: "123456789", DeclarationDate: "2024-03-05"}

	record, err := in.ToTradeRecord()
	require.NoError(t, err)

	assert.Equal(t, "100.123", NormalizeValue(record.Value))
	assert.Equal(t, ContentHash(OperationImport, "0101", raw, "CN", "123456789", "2024-03-05"), record.Hash)
	assert.NotEqual(t, record.ComputeHash(), record.Hash)
}

func TestOrganizationCompleteness(t *testing.T) {
	t.Run("empty when no data field is set", func(t *testing.T) {
		assert.True(t, (&Organization{Identifier: "123456789", Kind: PartyLegal}).Empty())
		assert.False(t, (&Organization{District: StringPtr("D")}).Empty())
	})

	t.Run("legal needs name region and district", func(t *testing.T) {
		org := &Organization{Kind: PartyLegal, Name: StringPtr("Acme"), Region: StringPtr("X")}
		assert.True(t, org.Incomplete())
		org.District = StringPtr("D")
		assert.False(t, org.Incomplete())
	})

	t.Run("individual needs both names", func(t *testing.T) {
		org := &Organization{Kind: PartyIndividual, FirstName: StringPtr("Ali"), Region: StringPtr("X"), District: StringPtr("D")}
		assert.True(t, org.Incomplete())
		org.LastName = StringPtr("Valiev")
		assert.False(t, org.Incomplete())
	})
}

func TestContentHash(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	value := decimal.NewNullDecimal(decimal.RequireFromString("100.500"))

	a := TradeRecord{Operation: OperationImport, CommodityCode: "0101", Value: value, CountryCode: "CN", Identifier: "123456789", DeclarationDate: date}
	b := TradeRecord{DeclarationDate: date, Identifier: "123456789", CountryCode: "CN", Value: value, CommodityCode: "0101", Operation: OperationImport}

	t.Run("independent of construction order", func(t *testing.T) {
		assert.Equal(t, a.ComputeHash(), b.ComputeHash())
	})

	t.Run("lowercase hex of 64 chars", func(t *testing.T) {
		assert.Regexp(t, "^[0-9a-f]{64}$", a.ComputeHash())
	})

	t.Run("trailing zeros do not matter", func(t *testing.T) {
		c := a
		c.Value = decimal.NewNullDecimal(decimal.RequireFromString("100.5"))
		assert.Equal(t, a.ComputeHash(), c.ComputeHash())
	})

	t.Run("absent value hashes as zero", func(t *testing.T) {
		c := a
		c.Value = decimal.NullDecimal{}
		d := a
		d.Value = decimal.NewNullDecimal(decimal.Zero)
		assert.Equal(t, d.ComputeHash(), c.ComputeHash())
	})

	mutations := map[string]func(r *TradeRecord){
		"operation":  func(r *TradeRecord) { r.Operation = OperationExport },
		"commodity":  func(r *TradeRecord) { r.CommodityCode = "0102" },
		"value":      func(r *TradeRecord) { r.Value = decimal.NewNullDecimal(decimal.RequireFromString("100.501")) },
		"country":    func(r *TradeRecord) { r.CountryCode = "KZ" },
		"identifier": func(r *TradeRecord) { r.Identifier = "987654321" },
		"date":       func(r *TradeRecord) { r.DeclarationDate = date.AddDate(0, 0, 1) },
	}
	for field, mutate := range mutations {
		t.Run("changing "+field+" changes hash", func(t *testing.T) {
			c := a
			mutate(&c)
			assert.NotEqual(t, a.ComputeHash(), c.ComputeHash())
		})
	}
}

func TestOrganizationMerge(t *testing.T) {
	t.Run("keeps existing field when incoming is nil", func(t *testing.T) {
		existing := &Organization{Identifier: "123456789", Kind: PartyLegal, Name: StringPtr("A"), Region: StringPtr("X")}
		changed := existing.Merge(&Organization{Name: nil, Region: StringPtr("Y")})

		assert.True(t, changed)
		assert.Equal(t, "A", Deref(existing.Name))
		assert.Equal(t, "Y", Deref(existing.Region))
	})

	t.Run("reports no change for identical values", func(t *testing.T) {
		existing := &Organization{Identifier: "123456789", Kind: PartyLegal, Name: StringPtr("A")}
		assert.False(t, existing.Merge(&Organization{Kind: PartyLegal, Name: StringPtr("A")}))
	})

	t.Run("fills kind on a fresh row", func(t *testing.T) {
		fresh := &Organization{Identifier: "12345678901234"}
		fresh.Merge(&Organization{Kind: PartyIndividual, FirstName: StringPtr("Ali")})
		assert.Equal(t, PartyIndividual, fresh.Kind)
		assert.Equal(t, "Ali", Deref(fresh.FirstName))
	})

	t.Run("does not alias the incoming pointer", func(t *testing.T) {
		name := "Acme"
		existing := &Organization{}
		existing.Merge(&Organization{Name: &name})
		name = "changed"
		assert.Equal(t, "Acme", Deref(existing.Name))
	})
}
