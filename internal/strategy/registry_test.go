package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	r, err := NewRegistry(path)
	require.NoError(t, err)
	return r, path
}

func TestNewRegistryWritesDefaultCatalog(t *testing.T) {
	r, path := newTestRegistry(t)

	_, err := os.Stat(path)
	require.NoError(t, err, "default catalog file is created")

	ids := r.IDs()
	assert.Len(t, ids, 6)
	assert.Contains(t, ids, IDMATrend)
	assert.Contains(t, ids, IDLimitBoardWarn)

	info, ok := r.Info(IDGrid)
	require.True(t, ok)
	assert.Equal(t, "网格交易", info.Name)
}

func TestRegistryConstruct(t *testing.T) {
	r, _ := newTestRegistry(t)

	s, err := r.Construct(IDMACDMomentum)
	require.NoError(t, err)
	assert.Equal(t, IDMACDMomentum, s.ID)
	assert.Equal(t, -1.0, s.Context.DayHigh)

	_, err = r.Construct("NOPE")
	assert.Error(t, err)
}

func TestRegistryReloadReplacesCatalog(t *testing.T) {
	r, path := newTestRegistry(t)
	v1 := r.Version()

	custom := `strategies:
  GRID:
    name: 自定义网格
    periods: ["1"]
`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))
	require.NoError(t, r.Reload())

	assert.Equal(t, v1+1, r.Version())
	assert.Equal(t, []string{IDGrid}, r.IDs())
	info, _ := r.Info(IDGrid)
	assert.Equal(t, "自定义网格", info.Name)
}

func TestRegistryReloadFailureKeepsOldCatalog(t *testing.T) {
	r, path := newTestRegistry(t)
	v1 := r.Version()

	// 未知变体 ID 使整次重载失败。
	bad := `strategies:
  WHAT_IS_THIS:
    name: 不存在
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
	assert.Error(t, r.Reload())
	assert.Equal(t, v1, r.Version())
	assert.Len(t, r.IDs(), 6, "old catalog survives a failed reload")

	// 非法周期同样整体拒绝。
	badPeriod := `strategies:
  GRID:
    name: 网格
    periods: ["2"]
`
	require.NoError(t, os.WriteFile(path, []byte(badPeriod), 0o644))
	assert.Error(t, r.Reload())
	assert.Equal(t, v1, r.Version())

	// 空目录不满足 minProperties。
	require.NoError(t, os.WriteFile(path, []byte("strategies: {}\n"), 0o644))
	assert.Error(t, r.Reload())

	// 语法错误。
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o644))
	assert.Error(t, r.Reload())
	assert.Len(t, r.IDs(), 6)
}

func TestRegistryAllowsPeriod(t *testing.T) {
	r, path := newTestRegistry(t)

	assert.True(t, r.AllowsPeriod(IDMATrend, "15"))
	assert.False(t, r.AllowsPeriod(IDLimitBoardWarn, "60"))
	assert.False(t, r.AllowsPeriod("NOPE", "5"))

	// 未列出周期视为全部允许。
	open := `strategies:
  MA_TREND:
    name: 均线趋势
`
	require.NoError(t, os.WriteFile(path, []byte(open), 0o644))
	require.NoError(t, r.Reload())
	assert.True(t, r.AllowsPeriod(IDMATrend, "1"))
}

func TestRegistryOnChangeNotified(t *testing.T) {
	r, _ := newTestRegistry(t)

	ch := make(chan Snapshot, 1)
	r.OnChange(func(s Snapshot) { ch <- s })

	require.NoError(t, r.Reload())
	snap := <-ch
	assert.Len(t, snap.Strategies, 6)
	assert.Equal(t, r.Version(), snap.Version)
}
