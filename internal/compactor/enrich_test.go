package compactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetDistill/internal/model"
)

func previewPkt(payload string) *model.PacketRecord {
	return &model.PacketRecord{
		Transport: model.TransportTCP,
		Preview:   []byte(payload),
	}
}

func TestHTTPEnrichmentTokenizesRequestLine(t *testing.T) {
	e := newEnrichment("http").(*httpEnrichment)

	e.Observe(previewPkt("GET /Assets/Item7?id=42&cat=books HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	assert.Equal(t, []string{"assets", "item7", "id", "42", "cat", "books"}, e.Tokens())

	// Responses and repeats contribute nothing new.
	e.Observe(previewPkt("HTTP/1.1 200 OK\r\nContent-Length: 12\r\n\r\n"))
	e.Observe(previewPkt("GET /assets/item7 HTTP/1.1\r\n\r\n"))
	assert.Len(t, e.Tokens(), 6)
}

func TestHTTPEnrichmentKeepsInjectionTokens(t *testing.T) {
	e := newEnrichment("http").(*httpEnrichment)
	e.Observe(previewPkt("GET /login?user=x&pass=1 or 1 HTTP/1.1\r\n\r\n"))
	assert.Contains(t, e.Tokens(), "or")
}

func TestHTTPEnrichmentSoftCap(t *testing.T) {
	e := newEnrichment("http").(*httpEnrichment)
	for i := 0; i < 1000; i++ {
		e.Observe(previewPkt("GET /p/" + string(rune('a'+i%26)) + "/x" + string(rune('0'+i%10)) + " HTTP/1.1\r\n\r\n"))
	}
	assert.LessOrEqual(t, len(e.Tokens()), httpTokenSoftCap)
}

func TestFTPEnrichmentCountsVerbs(t *testing.T) {
	e := newEnrichment("ftp").(*ftpEnrichment)
	e.Observe(previewPkt("USER anonymous\r\nPASS guest\r\n"))
	e.Observe(previewPkt("RETR backup.tar\r\n"))
	e.Observe(previewPkt("retr notes.txt\r\n"))
	e.Observe(previewPkt("220 welcome\r\n"))

	counts := e.Counts()
	require.NotNil(t, counts)
	assert.Equal(t, uint64(1), counts["USER"])
	assert.Equal(t, uint64(1), counts["PASS"])
	assert.Equal(t, uint64(2), counts["RETR"])
	assert.NotContains(t, counts, "STOR")
}

func TestFTPEnrichmentEmpty(t *testing.T) {
	e := newEnrichment("ftp").(*ftpEnrichment)
	e.Observe(previewPkt("220 welcome\r\n"))
	assert.Nil(t, e.Counts())
}

func TestSMBEnrichmentCommandCodes(t *testing.T) {
	e := newEnrichment("smb").(*smbEnrichment)

	smb2 := make([]byte, 16)
	copy(smb2, "\xfeSMB")
	smb2[12] = 5 // SMB2 CREATE
	e.Observe(&model.PacketRecord{Preview: smb2})
	e.Observe(&model.PacketRecord{Preview: smb2})

	smb1 := make([]byte, 8)
	copy(smb1, "\xffSMB")
	smb1[4] = 0x2e
	e.Observe(&model.PacketRecord{Preview: smb1})

	// Not an SMB header at all.
	e.Observe(previewPkt("GET / HTTP/1.1\r\n\r\n"))

	counts := e.Counts()
	require.NotNil(t, counts)
	assert.Equal(t, uint64(2), counts["SMB2_5"])
	assert.Equal(t, uint64(1), counts["SMB1_46"])
}

func TestNewEnrichmentUnknownService(t *testing.T) {
	assert.Nil(t, newEnrichment("ssh"))
	assert.Nil(t, newEnrichment("unknown"))
}
