package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/query"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file; defaults built in if empty")
		frames     = flag.Int("frames", 64, "number of scheduler frames to run before reporting")
		viewRadius = flag.Float64("radius", 96, "view radius in world units")
	)
	flag.Parse()

	cfg := voxterra.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("voxdemo: open config: %v", err)
		}
		defer f.Close()
		cfg, err = voxterra.LoadConfig(f)
		if err != nil {
			log.Fatalf("voxdemo: load config: %v", err)
		}
	}

	engine := voxterra.New(cfg, nil, nil)
	defer engine.Close()

	// ground slab: registered first, so its blend degenerates to Union.
	if _, err := engine.AddShape(voxterra.ShapeSpec{
		Kind:           field.KindBox,
		Transform:      field.Transform{Pos: ms3.Vec{X: 0, Y: 0, Z: 0}, Rot: ms3.IdentityMat3()},
		BoxHalfExtents: ms3.Vec{X: 64, Y: 64, Z: 16},
		Material:       0,
	}); err != nil {
		log.Fatalf("voxdemo: add ground: %v", err)
	}
	// carved out of the slab.
	if _, err := engine.AddShape(voxterra.ShapeSpec{
		Kind:         field.KindSphere,
		Transform:    field.Transform{Pos: ms3.Vec{X: 5, Y: 5, Z: 5}, Rot: ms3.IdentityMat3()},
		SphereRadius: 3.5,
		Blend:        field.Subtraction,
		Material:     1,
	}); err != nil {
		log.Fatalf("voxdemo: add shape: %v", err)
	}
	if err := engine.Err(); err != nil {
		log.Fatalf("voxdemo: accumulated shape errors: %v", err)
	}

	viewer := ms3.Vec{X: 0, Y: 0, Z: 0}
	radius := float32(*viewRadius)
	start := time.Now()
	for i := 0; i < *frames; i++ {
		engine.Update(viewer, radius)
	}
	log.Printf("voxdemo: ran %d frames in %s, %d chunks resident", *frames, time.Since(start), engine.Store.GeneratedCount())

	res := engine.Raycast(ms3.Vec{X: 5, Y: 5, Z: 20}, ms3.Vec{X: 0, Y: 0, Z: -1})
	if res.Hit {
		log.Printf("voxdemo: raycast hit at %+v distance=%.3f normal=%+v", res.Posf, res.Distance, res.Normal)
	} else {
		log.Printf("voxdemo: raycast missed (touchedUnloaded=%v)", res.TouchedUnloaded)
	}

	if offset, ok := engine.PushOutSphere(query.Sphere{Center: ms3.Vec{X: 5, Y: 5, Z: 5}, Radius: 0.5}); ok {
		log.Printf("voxdemo: push-out offset %+v", offset)
	}
}
