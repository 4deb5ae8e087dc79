package audit

import (
	"context"
	"testing"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"gorm.io/gorm"
)

func TestModule_FlushesOnStop(t *testing.T) {
	db := testutils.SetupTestDB(t, &Entry{})

	var svc *Service
	app := fxtest.New(t,
		fx.Provide(
			func() *config.Config { return testutils.GetTestConfig() },
			func() *gorm.DB { return db },
			logging.NewNop,
		),
		Module,
		fx.Populate(&svc),
	)
	app.RequireStart()

	require.True(t, svc.LogAuth(context.Background(), ActionLogin, 1, Meta{IPAddress: "1.2.3.4"}, true, "", nil))
	app.RequireStop()

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
