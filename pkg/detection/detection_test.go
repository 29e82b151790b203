package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

func TestCropPrompt(t *testing.T) {
	known := CropPrompt(types.DetectedCrop{OCRCode: "PA-0425"}, "")
	assert.Contains(t, known, "PA-0425. Use it as item_code")
	assert.NotContains(t, known, "User hints")

	unknown := CropPrompt(types.DetectedCrop{OCRCode: types.UnknownCode}, "  lavender batch ")
	assert.Contains(t, unknown, "Identify any text label")
	assert.Contains(t, unknown, "User hints about these items: lavender batch")
	assert.Contains(t, unknown, `"item_code"`)

	blank := CropPrompt(types.DetectedCrop{}, "")
	assert.Contains(t, blank, "Identify any text label")
	assert.NotContains(t, blank, "Use it as item_code")
}

func TestFallbackPrompt(t *testing.T) {
	p := FallbackPrompt("dragons")
	assert.Contains(t, p, "JSON array")
	assert.Contains(t, p, "dragons")
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		code  string
		color string
	}{
		{"plain", `{"item_code":"PA-0425","visual_features":{"color":"Imperial Green","motif":"Dragon","characteristics":"Icy"}}`, "PA-0425", "Imperial Green"},
		{"fenced", "```json\n{\"item_code\":\"pa 0425\",\"visual_features\":{\"color\":\"White\"}}\n```", "PA-0425", "White"},
		{"placeholder code", `{"item_code":"UNKNOWN","visual_features":{"color":"Lavender","motif":"Lotus","characteristics":"Waxy"}}`, types.UnknownCode, "Lavender"},
		{"missing fields", `Sure! {"item_code":"BX-101"}`, "BX-101", types.UnknownCode},
		{"numeric code", `{"item_code":425,"visual_features":{"color":"Green"}}`, "425", "Green"},
		{"null color", `{"item_code":"PA-0425","visual_features":{"color":null}}`, "PA-0425", types.UnknownCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseItem(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.code, res.ItemCode)
			assert.Equal(t, tt.color, res.VisualFeatures.Color)
			assert.False(t, res.Failed())
		})
	}
}

func TestParseItemListFields(t *testing.T) {
	raw := `{"item_code":"PA-0425","visual_features":{"color":["Green"," White "],"motif":"Dragon","characteristics":["Icy","Fine",""]}}`
	res, err := ParseItem(raw)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "PA-0425", res.ItemCode)
	assert.Equal(t, "Green, White", res.VisualFeatures.Color)
	assert.Equal(t, "Dragon", res.VisualFeatures.Motif)
	assert.Equal(t, "Icy, Fine", res.VisualFeatures.Characteristics)
}

func TestParseItemUnparseable(t *testing.T) {
	raw := strings.Repeat("翡", 250)
	res, err := ParseItem(raw)
	assert.ErrorIs(t, err, ErrUnparseable)
	assert.True(t, res.Degraded)
	assert.Equal(t, types.UnknownCode, res.ItemCode)
	assert.Equal(t, types.UnknownCode, res.VisualFeatures.Color)
	assert.Equal(t, types.UnknownCode, res.VisualFeatures.Motif)
	assert.Equal(t, 200, len([]rune(res.VisualFeatures.Characteristics)))

	res, err = ParseItem(`{}`)
	assert.ErrorIs(t, err, ErrUnparseable)
	assert.Equal(t, "{}", res.VisualFeatures.Characteristics)
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		codes []string
	}{
		{"array", `[{"item_code":"PA-0425"},{"item_code":"PA-0426"}]`, []string{"PA-0425", "PA-0426"}},
		{"wrapped", `{"items":[{"item_code":"PA-0425"},{"item_code":"unknown"}]}`, []string{"PA-0425", types.UnknownCode}},
		{"prose around array", "Here you go:\n[{\"item_code\":\"AB-123\"}]\nThanks", []string{"AB-123"}},
		{"single object", `{"item_code":"PA-0425","visual_features":{"color":"Green"}}`, []string{"PA-0425"}},
		{"empty array", `[]`, []string{}},
		{"blank entries dropped", `[{}, {"item_code":"PA-0425"}]`, []string{"PA-0425"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseItems(tt.raw)
			require.NoError(t, err)
			got := make([]string, 0, len(items))
			for _, it := range items {
				got = append(got, it.ItemCode)
				assert.Empty(t, it.CropPath)
			}
			assert.Equal(t, tt.codes, got)
		})
	}

	_, err := ParseItems("no json at all")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseItemsListFields(t *testing.T) {
	raw := `[{"item_code":"PA-0425","visual_features":{"characteristics":"Icy"}},` +
		`{"item_code":"PA-0426","visual_features":{"characteristics":["Waxy","Cloudy"]}}]`
	items, err := ParseItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "PA-0426", items[1].ItemCode)
	assert.Equal(t, "Waxy, Cloudy", items[1].VisualFeatures.Characteristics)

	// A single item whose feature is a list is not read as a list of items
	items, err = ParseItems(`{"item_code":"PA-0425","visual_features":{"motif":["Dragon","Cloud"]}}`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "PA-0425", items[0].ItemCode)
	assert.Equal(t, "Dragon, Cloud", items[0].VisualFeatures.Motif)
}

func TestParseItemsBadEntry(t *testing.T) {
	raw := `[{"item_code":"PA-0425"},{"item_code":"PA-0426","visual_features":"green"},{"item_code":"PA-0427"}]`
	items, err := ParseItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "PA-0425", items[0].ItemCode)
	assert.False(t, items[0].Degraded)
	assert.True(t, items[1].Degraded)
	assert.Equal(t, types.UnknownCode, items[1].ItemCode)
	assert.Contains(t, items[1].VisualFeatures.Characteristics, `"visual_features":"green"`)
	assert.Equal(t, "PA-0427", items[2].ItemCode)
	assert.False(t, items[2].Degraded)
}

func TestMergeCode(t *testing.T) {
	known := types.DetectedCrop{OCRCode: "PA-0425"}
	model := types.AnalysisResult{ItemCode: types.UnknownCode}
	assert.Equal(t, "PA-0425", MergeCode(model, known).ItemCode)

	model.ItemCode = "PA-9999"
	assert.Equal(t, "PA-0425", MergeCode(model, known).ItemCode)
	assert.Equal(t, "PA-9999", MergeCode(model, types.DetectedCrop{OCRCode: types.UnknownCode}).ItemCode)
	assert.Equal(t, "PA-9999", MergeCode(model, types.DetectedCrop{}).ItemCode)
}
