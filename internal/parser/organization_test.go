package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrganizationFromText(t *testing.T) {
	text := "収支報告書\n政治団体の名称　山田太郎後援会\n令和5年分\n"
	name, year, err := ResolveOrganization(text, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "山田太郎後援会", name)
	assert.Equal(t, 2023, year)
}

func TestResolveOrganizationGregorianYear(t *testing.T) {
	text := "団体の名称: 未来政策研究会\n2022年分 収支報告書\n"
	name, year, err := ResolveOrganization(text, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "未来政策研究会", name)
	assert.Equal(t, 2022, year)
}

func TestResolveOrganizationFromFileName(t *testing.T) {
	// 正文识别不到时退回文件名
	name, year, err := ResolveOrganization("本文なし", "自民党東京都支部_令和5年.pdf")
	require.NoError(t, err)
	assert.Equal(t, "自民党東京都支部", name)
	assert.Equal(t, 2023, year)
}

func TestResolveOrganizationNotResolved(t *testing.T) {
	_, _, err := ResolveOrganization("中身のないテキスト", "scan001.pdf")
	assert.ErrorIs(t, err, ErrOrganizationNotResolved)
}
