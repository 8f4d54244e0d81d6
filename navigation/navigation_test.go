package navigation_test

import (
	"testing"

	"github.com/jrsteele09/crm-session/navigation"
	"github.com/stretchr/testify/require"
)

func TestTab(t *testing.T) {
	tab := navigation.NewTab("/dashboard")
	require.Equal(t, "/dashboard", tab.CurrentPath())
	require.False(t, tab.ConsumeRedirect())

	tab.SetPath("/leads")
	require.Equal(t, "/leads", tab.CurrentPath())

	tab.RedirectToSignIn()
	tab.RedirectToSignIn()
	require.True(t, tab.ConsumeRedirect())
	require.False(t, tab.ConsumeRedirect())
	require.Equal(t, 2, tab.Redirects())
}
