// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/api"
	"assistant-workers/internal/catalog"
	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/render"
	"assistant-workers/internal/service"
	"assistant-workers/pkg/registry"

	annotatereply "assistant-workers/internal/workers/ai-conversation/annotate-reply"
	resolveproducts "assistant-workers/internal/workers/ai-conversation/resolve-products"
)

const (
	catalogPath  = "../../configs/catalog.yaml"
	registryPath = "../../configs/activity-registry.json"

	reply = "Two picks for the trek:\n\n" +
		"**Trail Hiking Boots** (₹4599) hold up on wet rock.\n" +
		"Pack the **Insulated Steel Bottle** too, it is ₹749 well spent.\n\n" +
		"More at [our store](https://shop.example.com/outdoor)."
)

type testEnv struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	svc    *service.Service
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	cache := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	repo, err := catalog.NewFromConfig(config.CatalogConfig{
		Source:   config.CatalogSourceFile,
		FilePath: catalogPath,
		CacheTTL: 60000,
		Timeout:  2000,
	}, catalog.Backends{Redis: cache}, log)
	require.NoError(t, err)

	svc := service.New(service.Config{
		NormalizeUnicode: true,
		ResultCacheTTL:   time.Minute,
		MaxBatchSize:     10,
		BatchConcurrency: 2,
	}, repo, cache, log, nil)

	httpCfg := config.HTTPConfig{AllowedOrigins: []string{"*"}}
	handler := api.NewHandler(svc, render.DefaultOptions(), 5*time.Second, log, cache)
	server := httptest.NewServer(api.NewRouter(httpCfg, handler, log))
	t.Cleanup(server.Close)

	return &testEnv{server: server, redis: mr, svc: svc}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) (int, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type annotateResponse struct {
	ID              string `json:"id"`
	RenderMode      string `json:"renderMode"`
	Cached          bool   `json:"cached"`
	CatalogVersion  string `json:"catalogVersion"`
	Recommendations []struct {
		Title           string   `json:"title"`
		Price           *float64 `json:"price"`
		Pass            string   `json:"pass"`
		MatchedEntityID *string  `json:"matchedEntityId"`
		MatchTier       string   `json:"matchTier"`
	} `json:"recommendations"`
	Segments []struct {
		Kind string `json:"kind"`
	} `json:"segments"`
}

func TestAnnotationAPI_EndToEnd(t *testing.T) {
	env := setupEnv(t)

	status, body := env.post(t, "/api/annotate", map[string]interface{}{"message": reply})
	require.Equal(t, http.StatusOK, status, string(body))

	var first annotateResponse
	require.NoError(t, json.Unmarshal(body, &first))

	assert.Equal(t, "structured", first.RenderMode)
	assert.False(t, first.Cached)
	require.Len(t, first.Recommendations, 2)

	boots := first.Recommendations[0]
	assert.Equal(t, "Trail Hiking Boots", boots.Title)
	assert.Equal(t, "inline", boots.Pass)
	require.NotNil(t, boots.MatchedEntityID)
	assert.Equal(t, "bt-031", *boots.MatchedEntityID)

	bottle := first.Recommendations[1]
	assert.Equal(t, "proximity", bottle.Pass)
	require.NotNil(t, bottle.Price)
	assert.Equal(t, 749.0, *bottle.Price)
	require.NotNil(t, bottle.MatchedEntityID)
	assert.Equal(t, "bot-007", *bottle.MatchedEntityID)

	status, body = env.post(t, "/api/annotate", map[string]interface{}{"message": reply})
	require.Equal(t, http.StatusOK, status)

	var second annotateResponse
	require.NoError(t, json.Unmarshal(body, &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.CatalogVersion, second.CatalogVersion)
	assert.NotEqual(t, first.ID, second.ID)

	assert.NotEmpty(t, env.redis.Keys())
}

func TestAnnotationAPI_RenderAndResolve(t *testing.T) {
	env := setupEnv(t)

	status, body := env.post(t, "/api/render?format=html", map[string]interface{}{"message": reply})
	require.Equal(t, http.StatusOK, status)
	html := string(body)
	assert.Contains(t, html, `class="recommendations-grid"`)
	assert.Contains(t, html, "Trail Hiking Boots")
	assert.Contains(t, html, `href="https://shop.example.com/outdoor"`)

	status, body = env.post(t, "/api/resolve", map[string]interface{}{
		"titles": []string{"The Trail Hiking Boots (2024)", "Hiking Boots Pro", "Snow Shovel"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var resolved struct {
		Resolutions []struct {
			MatchTier string `json:"matchTier"`
		} `json:"resolutions"`
	}
	require.NoError(t, json.Unmarshal(body, &resolved))
	require.Len(t, resolved.Resolutions, 3)
	assert.Equal(t, "exact", resolved.Resolutions[0].MatchTier)
	assert.Equal(t, "keyword_majority", resolved.Resolutions[1].MatchTier)
	assert.Equal(t, "none", resolved.Resolutions[2].MatchTier)
}

func TestAnnotationAPI_Batch(t *testing.T) {
	env := setupEnv(t)

	status, body := env.post(t, "/api/annotate/batch", map[string]interface{}{
		"requests": []map[string]interface{}{
			{"message": reply},
			{"message": "No products here, just a hello."},
			{"message": 42},
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var batch struct {
		Results []annotateResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &batch))
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "structured", batch.Results[0].RenderMode)
	assert.Equal(t, "plain", batch.Results[1].RenderMode)
	assert.Empty(t, batch.Results[2].Recommendations)
}

func TestAnnotationAPI_Ready(t *testing.T) {
	env := setupEnv(t)

	resp, err := http.Get(env.server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.redis.Close()

	resp, err = http.Get(env.server.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

const processBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:zeebe="http://camunda.org/schema/zeebe/1.0" id="assistant-e2e" targetNamespace="http://bpmn.io/schema/bpmn">
  <bpmn:process id="assistant-reply-e2e" isExecutable="true">
    <bpmn:startEvent id="start"><bpmn:outgoing>f1</bpmn:outgoing></bpmn:startEvent>
    <bpmn:serviceTask id="annotate" name="Annotate reply">
      <bpmn:extensionElements><zeebe:taskDefinition type="annotate-assistant-reply" /></bpmn:extensionElements>
      <bpmn:incoming>f1</bpmn:incoming><bpmn:outgoing>f2</bpmn:outgoing>
    </bpmn:serviceTask>
    <bpmn:serviceTask id="resolve" name="Resolve products">
      <bpmn:extensionElements>
        <zeebe:taskDefinition type="resolve-catalog-products" />
        <zeebe:ioMapping><zeebe:input source="=for r in recommendations return r.title" target="titles" /></zeebe:ioMapping>
      </bpmn:extensionElements>
      <bpmn:incoming>f2</bpmn:incoming><bpmn:outgoing>f3</bpmn:outgoing>
    </bpmn:serviceTask>
    <bpmn:endEvent id="end"><bpmn:incoming>f3</bpmn:incoming></bpmn:endEvent>
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="annotate" />
    <bpmn:sequenceFlow id="f2" sourceRef="annotate" targetRef="resolve" />
    <bpmn:sequenceFlow id="f3" sourceRef="resolve" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

// TestWorkers_AgainstBroker runs both job workers against a live gateway.
// Set ZEEBE_ADDRESS (for example localhost:26500) to enable it.
func TestWorkers_AgainstBroker(t *testing.T) {
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" || testing.Short() {
		t.Skip("ZEEBE_ADDRESS not set")
	}
	log := logger.NewTestLogger(t)

	client, err := camunda.NewClient(address, 10*time.Second)
	require.NoError(t, err)
	defer client.Close()

	reg, err := registry.LoadRegistry(registryPath)
	require.NoError(t, err)
	validator, err := validation.NewValidator(reg)
	require.NoError(t, err)

	svc := service.New(service.Config{}, catalog.NewFileRepository(catalogPath), nil, log, nil)

	ar, err := annotatereply.NewHandler(annotatereply.HandlerOptions{Service: svc, Validator: validator, Logger: log})
	require.NoError(t, err)
	rp, err := resolveproducts.NewHandler(resolveproducts.HandlerOptions{Service: svc, Validator: validator, Logger: log})
	require.NoError(t, err)

	opts := camunda.WorkerOptions{MaxJobsActive: 2, Timeout: 30 * time.Second, PollInterval: 100 * time.Millisecond}
	workers := []*camunda.CamundaWorker{
		camunda.NewWorker(client.GetClient(), annotatereply.TaskType, opts, ar, log),
		camunda.NewWorker(client.GetClient(), resolveproducts.TaskType, opts, rp, log),
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, w := range workers {
			w.Stop(stopCtx)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = client.GetClient().NewDeployResourceCommand().
		AddResource([]byte(processBPMN), "assistant-reply-e2e.bpmn").
		Send(ctx)
	require.NoError(t, err)

	cmd, err := client.GetClient().NewCreateInstanceCommand().
		BPMNProcessId("assistant-reply-e2e").
		LatestVersion().
		VariablesFromMap(map[string]interface{}{"message": reply})
	require.NoError(t, err)

	result, err := cmd.WithResult().Send(ctx)
	require.NoError(t, err)

	var vars struct {
		RenderMode         string   `json:"renderMode"`
		HasRecommendations bool     `json:"hasRecommendations"`
		MatchedIDs         []string `json:"matchedIds"`
		Unmatched          []string `json:"unmatched"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.GetVariables()), &vars))

	assert.Equal(t, "structured", vars.RenderMode)
	assert.True(t, vars.HasRecommendations)
	assert.Equal(t, []string{"bt-031", "bot-007"}, vars.MatchedIDs)
	assert.Empty(t, vars.Unmatched)
}
