package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/stroke.report/internal/classifier"
	"github.com/banshee-data/stroke.report/internal/version"
)

var (
	dataPath    = flag.String("data", "testdata/labelled_strokes.csv", "Labelled CSV with acc_*, gyro_* and label columns")
	outPath     = flag.String("out", "model/stroke_knn.json", "Where to write the trained model")
	k           = flag.Int("k", classifier.DefaultK, "Number of neighbours")
	seed        = flag.Int64("seed", 5, "Shuffle seed for the train/test split")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// evaluation is the held-out result of one training run.
type evaluation struct {
	Train, Test int
	Accuracy    float64
	Confusion   classifier.Confusion
}

// train fits a model on the training share of the CSV in r and scores it on
// the held-out share.
func train(r io.Reader, k int, seed int64) (*classifier.Model, evaluation, error) {
	samples, err := classifier.ReadCSV(r)
	if err != nil {
		return nil, evaluation{}, err
	}
	trainSet, testSet := classifier.TrainTestSplit(samples, classifier.DefaultTestFraction, seed)
	model, err := classifier.Train(trainSet, k)
	if err != nil {
		return nil, evaluation{}, err
	}

	ev := evaluation{Train: len(trainSet), Test: len(testSet)}
	if len(testSet) == 0 {
		return model, ev, nil
	}
	pred, err := model.PredictAll(testSet)
	if err != nil {
		return nil, evaluation{}, err
	}
	truth := make([]string, len(testSet))
	for i, s := range testSet {
		truth[i] = s.Label
	}
	ev.Accuracy = classifier.Accuracy(truth, pred)
	ev.Confusion = classifier.ConfusionMatrix(truth, pred, model.Classes)
	return model, ev, nil
}

func printEvaluation(w io.Writer, ev evaluation) {
	fmt.Fprintf(w, "train samples: %d\ntest samples:  %d\n", ev.Train, ev.Test)
	if ev.Test == 0 {
		fmt.Fprintln(w, "no held-out samples; accuracy not measured")
		return
	}
	fmt.Fprintf(w, "accuracy: %.3f\n\nconfusion (rows true, columns predicted):\n%s", ev.Accuracy, ev.Confusion)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stroke-train"))
		return
	}

	f, err := os.Open(*dataPath)
	if err != nil {
		log.Fatalf("failed to open training data: %v", err)
	}
	defer f.Close()

	model, ev, err := train(f, *k, *seed)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	printEvaluation(os.Stdout, ev)

	if err := model.SaveFile(*outPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}
	log.Printf("model saved to %s", *outPath)
}
