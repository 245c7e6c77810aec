package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnake(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Contact", "contact"},
		{"ColorMode", "color_mode"},
		{"HTTPServer", "http_server"},
		{"HTTPServerV2", "http_server_v2"},
		{"Product2B", "product_2_b"},
		{"Level3Support", "level_3_support"},
		{"colorMode", "color_mode"},
		{"already_snake", "already_snake"},
		{"with space", "with_space"},
		{"dash-name", "dash_name"},
		{"double__underscore", "double_underscore"},
		{"_leading", "leading"},
		{"UserID", "user_id"},
		{"XMLParser", "xml_parser"},
		{"ABC", "abc"},
		{"A", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Snake(tt.input))
		})
	}
}
