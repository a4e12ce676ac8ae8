package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Marshal(t *testing.T) {
	t.Run("Marshal empty metadata", func(t *testing.T) {
		m := Metadata{}

		bytes, err := m.Marshal()

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), bytes)
	})

	t.Run("Marshal metadata with simple values", func(t *testing.T) {
		m := Metadata{
			"material": "ductile iron",
			"diameter": 12,
			"active":   true,
		}

		bytes, err := m.Marshal()

		require.NoError(t, err)

		// Unmarshal to verify structure
		var result map[string]interface{}
		err = json.Unmarshal(bytes, &result)
		require.NoError(t, err)
		assert.Equal(t, "ductile iron", result["material"])
		assert.Equal(t, float64(12), result["diameter"]) // JSON numbers become float64
		assert.Equal(t, true, result["active"])
	})

	t.Run("Marshal nil metadata", func(t *testing.T) {
		var m Metadata = nil

		bytes, err := m.Marshal()

		require.NoError(t, err)
		assert.Equal(t, []byte("null"), bytes)
	})
}

func TestMetadata_Unmarshal(t *testing.T) {
	t.Run("Unmarshal valid JSON bytes", func(t *testing.T) {
		jsonBytes := []byte(`{"material":"pvc","diameter":8,"active":true}`)
		var m Metadata

		err := m.Unmarshal(jsonBytes)

		require.NoError(t, err)
		assert.Equal(t, "pvc", m["material"])
		assert.Equal(t, float64(8), m["diameter"])
		assert.Equal(t, true, m["active"])
	})

	t.Run("Unmarshal nil value yields empty metadata", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal(nil)

		require.NoError(t, err)
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("Unmarshal rejects non-byte values", func(t *testing.T) {
		var m Metadata

		err := m.Unmarshal(42)

		assert.Error(t, err, "Expected an error for a non-byte scan source")
	})
}

func TestMetadata_ValueScan(t *testing.T) {
	t.Run("Value and Scan round-trip", func(t *testing.T) {
		original := Metadata{
			"description": "primary feed line",
			"length_m":    125.5,
		}

		value, err := original.Value()
		require.NoError(t, err)

		var scanned Metadata
		err = scanned.Scan(value)
		require.NoError(t, err)

		assert.Equal(t, "primary feed line", scanned["description"])
		assert.Equal(t, 125.5, scanned["length_m"])
	})
}

func TestMetadata_Merge(t *testing.T) {
	t.Run("Patch keys overwrite existing keys", func(t *testing.T) {
		base := Metadata{"material": "pvc", "diameter": 8}
		patch := Metadata{"material": "ductile iron"}

		merged := base.Merge(patch)

		assert.Equal(t, "ductile iron", merged["material"])
		assert.Equal(t, 8, merged["diameter"], "Expected unnamed keys to be kept")
	})

	t.Run("Nil patch values delete keys", func(t *testing.T) {
		base := Metadata{"material": "pvc", "deprecated_field": "x"}
		patch := Metadata{"deprecated_field": nil}

		merged := base.Merge(patch)

		_, exists := merged["deprecated_field"]
		assert.False(t, exists, "Expected a nil patch value to delete the key")
		assert.Equal(t, "pvc", merged["material"])
	})

	t.Run("Patch keys may add new keys", func(t *testing.T) {
		base := Metadata{"material": "pvc"}
		patch := Metadata{"install_year": 1998}

		merged := base.Merge(patch)

		assert.Equal(t, 1998, merged["install_year"])
		assert.Len(t, merged, 2)
	})

	t.Run("Merge does not mutate the receiver", func(t *testing.T) {
		base := Metadata{"material": "pvc"}
		patch := Metadata{"material": nil}

		_ = base.Merge(patch)

		assert.Equal(t, "pvc", base["material"], "Expected the original metadata to stay unchanged")
	})
}
