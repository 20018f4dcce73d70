package namestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "names.db"))
	require.NoError(t, err)
	return s
}

func TestEnsureSymbolsFetchesMissing(t *testing.T) {
	s := openTestStore(t)

	looked := map[string]int{}
	s.SetLookup(func(_ context.Context, sym string) (string, error) {
		looked[sym]++
		if sym == "sh600519" {
			return "贵州茅台", nil
		}
		return "", errors.New("not found")
	})

	s.EnsureSymbols(context.Background(), []string{"sh600519", "sz999999"})

	assert.Equal(t, "贵州茅台", s.GetName("sh600519"))
	assert.Equal(t, "股", s.GetType("sh600519"))
	// 查询失败的代码回退为代码本身，不阻塞其余代码。
	assert.Equal(t, "sz999999", s.GetName("sz999999"))
	assert.Equal(t, 1, looked["sh600519"])
	assert.Equal(t, 1, looked["sz999999"])

	// 已缓存的不再重复查询。
	s.EnsureSymbols(context.Background(), []string{"sh600519"})
	assert.Equal(t, 1, looked["sh600519"])
}

func TestCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.db")

	s1, err := Open(path)
	require.NoError(t, err)
	s1.SetLookup(func(_ context.Context, sym string) (string, error) { return "沪深300ETF", nil })
	s1.EnsureSymbols(context.Background(), []string{"sh510300"})
	require.Equal(t, 1, s1.Len())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "沪深300ETF", s2.GetName("sh510300"))
	assert.Equal(t, "基", s2.GetType("sh510300"))
}

func TestCachedLookupAcceptsBothCodeForms(t *testing.T) {
	s := openTestStore(t)
	s.SetLookup(func(_ context.Context, sym string) (string, error) { return "贵州茅台", nil })
	s.EnsureSymbols(context.Background(), []string{"sh600519"})

	assert.Equal(t, "贵州茅台", s.GetName("600519"), "bare code resolves against prefixed entry")
	assert.Equal(t, "贵州茅台", s.GetName("sh600519"))
}

func TestGetInfoFallsBackToPrefixInference(t *testing.T) {
	s := openTestStore(t)
	info := s.GetInfo("sh113050")
	assert.Equal(t, "sh113050", info.Name)
	assert.Equal(t, "债", info.Type)
	assert.Equal(t, "沪", info.Market)
}
