package detection

// cocoLabels is the COCO category list used by the Faster R-CNN detector.
// Index 0 is the background class.
var cocoLabels = []string{
	"__background__", "person", "bicycle", "car", "motorcycle", "airplane", "bus",
	"train", "truck", "boat", "traffic light", "fire hydrant", "stop sign", "parking meter",
	"bench", "bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe",
	"backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant", "bed",
	"dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// foodClasses are the COCO classes that correspond to ingredients or food containers.
var foodClasses = map[string]struct{}{
	"banana":     {},
	"apple":      {},
	"orange":     {},
	"broccoli":   {},
	"carrot":     {},
	"pizza":      {},
	"donut":      {},
	"sandwich":   {},
	"hot dog":    {},
	"bottle":     {},
	"wine glass": {},
	"cup":        {},
	"bowl":       {},
	"cake":       {},
}

// LabelForClass returns the COCO label for a class index, or "" when out of range.
func LabelForClass(class int) string {
	if class < 0 || class >= len(cocoLabels) {
		return ""
	}
	return cocoLabels[class]
}

// Labels returns a copy of the label vocabulary without the background class.
func Labels() []string {
	out := make([]string, len(cocoLabels)-1)
	copy(out, cocoLabels[1:])
	return out
}

// IsFood reports whether a canonical name is on the food allow-list.
func IsFood(name string) bool {
	_, ok := foodClasses[name]
	return ok
}
