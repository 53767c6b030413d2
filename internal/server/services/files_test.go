package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/quota"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = 1 << 30

func TestUploadFile_HappyPath(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")
	e.seedSubscription(t, "u1", 0, gib)

	const size = 500 * quota.MiB
	res, err := e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: "thesis.pdf"}, size, &zeros{n: size})
	require.NoError(t, err)

	assert.Equal(t, int64(524_288_000), res.Subscription.UsedStorage)
	assert.Equal(t, models.QuotaActive, res.Subscription.Status)
	assert.Equal(t, "application/octet-stream", res.File.ContentType)
	assert.Equal(t, 1, e.blobs.count())
	assert.Equal(t, int64(size), e.blobs.objects[res.File.StoragePath])

	subs := e.subscriptions(t, "u1")
	require.Len(t, subs, 1)
	assert.Equal(t, int64(524_288_000), subs[0].UsedStorage)

	list, err := e.files.ListFiles(context.Background(), p, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.File.ID, list[0].ID)
	assert.Equal(t, []notify.Template{notify.TemplateFileUploaded}, e.notifier.templates())
}

func TestUploadFile_InsufficientQuotaStoresNothing(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")
	e.seedSubscription(t, "u1", 999_999, 1_000_000)

	_, err := e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: "a"}, 2, strings.NewReader("ab"))
	require.Error(t, err)
	assert.Equal(t, common.KindInsufficientQuota, common.KindOf(err))

	assert.Equal(t, int64(999_999), e.subscriptions(t, "u1")[0].UsedStorage)
	assert.Equal(t, 0, e.blobs.count())
	assert.Empty(t, e.notifier.templates())
}

func TestUploadFile_NoPlan(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")

	_, err := e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: "a"}, 1, strings.NewReader("a"))
	assert.Equal(t, common.KindNoActivePlan, common.KindOf(err))
}

func TestUploadFile_AbortDeletesStoredBlob(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")
	e.seedSubscription(t, "u1", 0, gib)

	e.deps.Tx = wrapTx{inner: e.store, wrap: func(r *uow.Repos) {
		r.Files = failingFiles{Repository: r.Files, err: errors.New("disk full")}
	}}
	e.build()

	_, err := e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: "a"}, 3, strings.NewReader("abc"))
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))

	assert.Equal(t, 0, e.blobs.count())
	assert.Len(t, e.blobs.deleted, 1)
	assert.Equal(t, int64(0), e.subscriptions(t, "u1")[0].UsedStorage)
}

func TestUploadFile_LowQuotaNotifies(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")
	e.seedSubscription(t, "u1", 0, 20*quota.MiB)

	res, err := e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: "a"}, 15*quota.MiB, &zeros{n: 15 * quota.MiB})
	require.NoError(t, err)
	assert.Equal(t, models.QuotaLow, res.Subscription.Status)
	assert.Equal(t, []notify.Template{notify.TemplateQuotaLow}, e.notifier.templates())
}

func TestUploadFile_Permissions(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "0")
	e.seedUser(t, "u2", access.Student, "0")
	e.seedSubscription(t, "u2", 0, gib)

	_, err := e.files.UploadFile(context.Background(), p, "u2", FileMeta{Name: "a"}, 1, strings.NewReader("a"))
	assert.Equal(t, common.KindPermission, common.KindOf(err))

	_, err = e.files.UploadFile(context.Background(), nil, "u2", FileMeta{Name: "a"}, 1, strings.NewReader("a"))
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))

	_, err = e.files.UploadFile(context.Background(), p, "u1", FileMeta{Name: " "}, 1, strings.NewReader("a"))
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestDeleteFile_ReleasesQuota(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "u1", access.Student, "0")
	other := e.seedUser(t, "u2", access.Student, "0")
	e.seedSubscription(t, "u1", 0, gib)

	res, err := e.files.UploadFile(ctx, p, "u1", FileMeta{Name: "a", ContentType: "text/plain"}, 3, strings.NewReader("abc"))
	require.NoError(t, err)

	url, err := e.files.DownloadURL(ctx, p, res.File.ID)
	require.NoError(t, err)
	assert.Contains(t, url, res.File.StoragePath)

	assert.Equal(t, common.KindPermission, common.KindOf(e.files.DeleteFile(ctx, other, res.File.ID)))
	_, err = e.files.DownloadURL(ctx, other, res.File.ID)
	assert.Equal(t, common.KindPermission, common.KindOf(err))

	require.NoError(t, e.files.DeleteFile(ctx, p, res.File.ID))
	assert.Equal(t, int64(0), e.subscriptions(t, "u1")[0].UsedStorage)
	assert.Equal(t, 0, e.blobs.count())

	assert.Equal(t, common.KindNotFound, common.KindOf(e.files.DeleteFile(ctx, p, res.File.ID)))
}

func TestDeleteFile_AdminMayDeleteOthers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "u1", access.Student, "0")
	admin := e.seedUser(t, "a1", access.Admin, "0")
	e.seedSubscription(t, "u1", 0, gib)

	res, err := e.files.UploadFile(ctx, p, "u1", FileMeta{Name: "a"}, 1, strings.NewReader("a"))
	require.NoError(t, err)
	assert.NoError(t, e.files.DeleteFile(ctx, admin, res.File.ID))
}
