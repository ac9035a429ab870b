package notifications

import (
	"context"
	"net/http"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns

var method = expects.RequestMethod
var bodyContaining = expects.RequestBodyContaining

func TestSingleNotificationOnDelete(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining(`"type": "ObjectsDeleted"`),
			bodyContaining(`"level": "c1"`),
		),
		Returns(
			response.Code(http.StatusOK),
		),
	)
	defer s.Close()

	ctx := context.Background()
	n, err := NewNotifier(ctx, s.URL())
	is.NoErr(err)

	is.NoErr(n.Start())

	n.ObjectsDeleted(ctx, "c1", []string{"17", "18"})

	is.NoErr(n.Stop())

	is.Equal(s.RequestCount(), 1)
}

func TestThatNothingIsPostedBeforeStart(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())

	n.LevelSaved(ctx, "c1")
	is.NoErr(n.Stop())

	is.Equal(s.RequestCount(), 0)
}

func TestThatAnEndpointIsRequired(t *testing.T) {
	is := is.New(t)

	_, err := NewNotifier(context.Background(), "")
	is.True(err != nil)

	_, err = NewNotifier(context.Background(), "localhost:8080/notify")
	is.True(err != nil)
}
