package smile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClient_Connect_errorResponse(t *testing.T) {
	_, client := newGatewayServer(t, nil)
	assert.ErrorIs(t, client.Connect(context.Background()), ErrResponse)
}

func TestEscapeIllegalXMLCharacters(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry", escapeIllegalXMLCharacters("Tom & Jerry"))
	assert.Equal(t, "Tom &amp; Jerry", escapeIllegalXMLCharacters("Tom &amp; Jerry"))
	assert.Equal(t, "&lt;name&gt;", escapeIllegalXMLCharacters("&lt;name&gt;"))
	assert.Equal(t, "no escapes", escapeIllegalXMLCharacters("no escapes"))
}
