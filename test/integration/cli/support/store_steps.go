package support

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/xuri/excelize/v2"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/testutil"
)

// RegisterStoreSteps registers steps that prepare files on disk.
func (tc *TestContext) RegisterStoreSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a results file "([^"]*)" with (\d+) uploaded and (\d+) pending results$`, tc.aResultsFile)
	sc.Step(`^a photo "([^"]*)" showing bib (\d+)$`, tc.aPhotoShowingBib)
	sc.Step(`^the workbook "([^"]*)" should list (\d+) results$`, tc.theWorkbookShouldList)
}

func (tc *TestContext) aResultsFile(name string, uploaded, pending int) error {
	store, err := collector.NewFileStore(tc.Path(name), nil)
	if err != nil {
		return err
	}
	base := time.Date(2024, 5, 18, 9, 0, 0, 0, time.UTC)
	var snaps []result.Snapshot
	for i := range uploaded + pending {
		s := result.Snapshot{
			Identity:    tc.Path(fmt.Sprintf("photo_%03d.jpg", i)),
			Category:    result.CategoryFinish,
			State:       result.StatePendingManually,
			CaptureTime: base.Add(time.Duration(i) * time.Second),
		}
		if i < uploaded {
			s.State = result.StateUploaded
			s.Numbers = []int{100 + i}
		}
		snaps = append(snaps, s)
	}
	return store.Save(context.Background(), snaps)
}

func (tc *TestContext) aPhotoShowingBib(name string, number int) error {
	img := testutil.BibImage(testutil.DefaultBibConfig(fmt.Sprint(number)))
	return imaging.Save(img, tc.Path(name))
}

func (tc *TestContext) theWorkbookShouldList(name string, n int) error {
	f, err := excelize.OpenFile(tc.Path(name))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Results")
	if err != nil {
		return err
	}
	if got := len(rows) - 1; got != n {
		return fmt.Errorf("workbook lists %d results, want %d", got, n)
	}
	return nil
}
