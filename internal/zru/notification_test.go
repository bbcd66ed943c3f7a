package zru

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const validNotification = `{
	"id": "T1",
	"order_id": 1001,
	"type": "P",
	"status": "D",
	"subscription_status": "",
	"action": "payment",
	"sale_action": "sale",
	"sale_id": "S1",
	"_charge_id": "CH1",
	"_gateway": {"code": "redsys", "identification": "G-7", "auth_code": "A99"}
}`

func TestDecodeNotification(t *testing.T) {
	c := newFakeAPI(t).client()

	n, err := c.DecodeNotification([]byte(validNotification))
	require.NoError(t, err)

	require.Equal(t, "T1", n.ID())
	require.Equal(t, int64(1001), n.OrderID())
	require.Equal(t, TypePayment, n.Type())
	require.Equal(t, StatusDone, n.Status())
	require.Equal(t, "S1", n.SaleID())
	require.Equal(t, "payment", n.Action())
	require.Equal(t, "sale", n.SaleAction())
	require.Equal(t, "", n.SubscriptionStatus())
	require.Equal(t, "CH1", n.ChargeID())
	require.Equal(t, GatewayMeta{Code: "redsys", Identification: "G-7", AuthCode: "A99"}, n.GatewayMeta())
}

func TestDecodeNotification_Malformed(t *testing.T) {
	c := newFakeAPI(t).client()

	bodies := []string{
		`{"id":`,
		`not json`,
		`null`,
		``,
		validNotification + ` not json`,
		validNotification + `{}`,
	}
	for _, body := range bodies {
		_, err := c.DecodeNotification([]byte(body))
		var mp *MalformedPayloadError
		require.True(t, errors.As(err, &mp), "body %q", body)
		require.Contains(t, err.Error(), "invalid JSON input")
	}
}

func TestDecodeNotification_AggregatesErrors(t *testing.T) {
	c := newFakeAPI(t).client()

	_, err := c.DecodeNotification([]byte(`{"id":"T1","type":"X","order_id":"abc"}`))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.ElementsMatch(t, []string{
		"status is required.",
		"subscription_status is required.",
		"Invalid value for type.",
		"Invalid value for order_id.",
		"action is required.",
		"sale_action is required.",
	}, ve.Errors)
}

func TestDecodeNotification_NullCountsAsMissing(t *testing.T) {
	c := newFakeAPI(t).client()

	_, err := c.DecodeNotification([]byte(`{"id":null,"type":"P","order_id":1,"status":"D","subscription_status":"","action":"","sale_action":""}`))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []string{"id is required."}, ve.Errors)
}

func TestDecodeNotification_SanitisesOrderID(t *testing.T) {
	c := newFakeAPI(t).client()

	n, err := c.DecodeNotification([]byte(`{"id":"T1","type":"P","order_id":"#10 01","status":"D","subscription_status":"","action":"","sale_action":""}`))
	require.NoError(t, err)
	require.Equal(t, int64(1001), n.OrderID())
}

func TestDecodeNotification_EscapesStrings(t *testing.T) {
	c := newFakeAPI(t).client()

	n, err := c.DecodeNotification([]byte(`{
		"id": "<b>T1</b>",
		"type": "P",
		"order_id": 5,
		"status": "D",
		"subscription_status": "a & \"b\"",
		"action": "<script>x</script>ok",
		"sale_action": "",
		"note": "<i>it's</i>"
	}`))
	require.NoError(t, err)

	require.Equal(t, "T1", n.ID())
	require.Equal(t, "a &amp; &#34;b&#34;", n.SubscriptionStatus())
	require.Equal(t, "xok", n.Action())

	v, ok := n.Lookup("note")
	require.True(t, ok)
	require.Equal(t, "it&#39;s", v)
}

func TestDecodeNotification_KeepsLooseAngleBrackets(t *testing.T) {
	c := newFakeAPI(t).client()

	n, err := c.DecodeNotification([]byte(`{
		"id": "T1",
		"type": "P",
		"order_id": 5,
		"status": "D",
		"subscription_status": "5 <",
		"action": "a < b done",
		"sale_action": "x<br>y"
	}`))
	require.NoError(t, err)

	require.Equal(t, "a &lt; b done", n.Action())
	require.Equal(t, "5 &lt;", n.SubscriptionStatus())
	require.Equal(t, "xy", n.SaleAction())
}

func TestNotification_Lookup(t *testing.T) {
	c := newFakeAPI(t).client()
	n, err := c.DecodeNotification([]byte(validNotification))
	require.NoError(t, err)

	v, ok := n.Lookup("order_id")
	require.True(t, ok)
	require.Equal(t, int64(1001), v)

	v, ok = n.Lookup("_gateway")
	require.True(t, ok)
	require.Equal(t, "redsys", v.(map[string]any)["code"])

	v, ok = n.Lookup("nope")
	require.False(t, ok)
	require.Nil(t, v)
}

func TestNotification_ResolversAreTypeGated(t *testing.T) {
	api := newFakeAPI(t)
	api.put("/transaction/", "T1", map[string]any{"status": "D"})
	api.put("/subscription/", "T1", map[string]any{"status": "A"})
	api.put("/authorization/", "T1", map[string]any{"status": "A"})
	api.put("/sale/", "S1", map[string]any{"amount": "19.99"})
	c := api.client()
	ctx := context.Background()

	tests := []struct {
		typ  string
		want Kind
	}{
		{TypePayment, KindTransaction},
		{TypeSubscription, KindSubscription},
		{TypeAuthorization, KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			n, err := c.DecodeNotification([]byte(`{"id":"T1","sale_id":"S1","type":"` + tt.typ +
				`","order_id":1001,"status":"D","subscription_status":"","action":"","sale_action":""}`))
			require.NoError(t, err)

			resolvers := map[Kind]func(context.Context) (*Object, error){
				KindTransaction:   n.Transaction,
				KindSubscription:  n.Subscription,
				KindAuthorization: n.Authorization,
			}
			for kind, resolve := range resolvers {
				obj, err := resolve(ctx)
				require.NoError(t, err)
				if kind != tt.want {
					require.Nil(t, obj, "%s resolved on type %s", kind, tt.typ)
					continue
				}
				require.NotNil(t, obj)
				require.Equal(t, "T1", obj.ID)
				require.Equal(t, kind, obj.Kind)
			}

			sale, err := n.Sale(ctx)
			require.NoError(t, err)
			require.Equal(t, "S1", sale.ID)
			require.Equal(t, KindSale, sale.Kind)
		})
	}
}

func TestNotification_AuthorizationUsesAuthorizationResource(t *testing.T) {
	api := newFakeAPI(t)
	api.put("/authorization/", "A1", map[string]any{"status": "D"})
	c := api.client()

	n, err := c.DecodeNotification([]byte(`{"id":"A1","type":"A","order_id":3,"status":"D","subscription_status":"","action":"","sale_action":""}`))
	require.NoError(t, err)

	auth, err := n.Authorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, KindAuthorization, auth.Kind)
	require.Equal(t, "A1", auth.ID)

	sale, err := n.Sale(context.Background())
	require.NoError(t, err)
	require.Nil(t, sale)
}
