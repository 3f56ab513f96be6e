package linac_service

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/iwtcode/icomService/internal/domain/models"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/pkg/converter"
)

// PlanConverter конвертирует планы DICOM в EFS файлы. Одновременные
// запросы одного плана в один каталог выполняются один раз.
type PlanConverter struct {
	outDir string
	group  singleflight.Group
	logger *logging.Logger
}

func NewPlanConverter(outDir string, logger *logging.Logger) *PlanConverter {
	return &PlanConverter{
		outDir: outDir,
		logger: logger.WithPrefix("CONVERTER"),
	}
}

// Convert пишет EFS файлы пучков плана. Пустой outDir - каталог из
// конфигурации, а если и он пуст - каталог плана.
func (c *PlanConverter) Convert(path, outDir string) (*converter.Result, error) {
	if outDir == "" {
		outDir = c.outDir
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}

	key := filepath.Clean(path) + "|" + filepath.Clean(outDir)
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return converter.ConvertFile(path, outDir)
	})
	if err != nil {
		c.logger.Error("Plan conversion failed", "path", path, "error", err)
		return nil, err
	}
	res := v.(*converter.Result)
	c.logger.Info("Plan converted", "path", path, "beams", len(res.Files), "failures", len(res.Failures), "shared", shared)
	return res, nil
}

// ConvertPlan - конвертация для API.
func (c *PlanConverter) ConvertPlan(req models.ConvertRequest) (*models.ConvertResult, error) {
	res, err := c.Convert(req.Path, req.OutDir)
	if err != nil {
		return nil, fmt.Errorf("не удалось конвертировать план '%s': %w", req.Path, err)
	}

	out := &models.ConvertResult{Files: make([]models.ConvertedBeam, 0, len(res.Files))}
	for _, f := range res.Files {
		out.Files = append(out.Files, models.ConvertedBeam{
			BeamNumber: f.BeamNumber,
			BeamName:   f.BeamName,
			Technique:  f.Technique.String(),
			TotalMU:    f.TotalMU,
			Segments:   len(f.Segments),
			Path:       f.Path,
		})
	}
	for _, failure := range res.Failures {
		out.Failures = append(out.Failures, failure.Error())
	}
	return out, nil
}
