package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var errJSONRequired = errors.New("a JSON value is required")

func cmdGet(ctx context.Context, o *IO, cfg Config, args []string) int {
	_, err := parseFileFlag(o, "get", &cfg, args)
	if err != nil {
		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	defer func() { _ = store.Close() }()

	v, err := store.Get(ctx)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	o.Println(string(v))

	return 0
}

func cmdSet(ctx context.Context, o *IO, cfg Config, args []string) int {
	rest, err := parseFileFlag(o, "set", &cfg, args)
	if err != nil {
		return 1
	}

	if len(rest) == 0 {
		o.Errorf("%v", errJSONRequired)

		return 1
	}

	value := json.RawMessage(rest[0])
	if !json.Valid(value) {
		o.Errorf("invalid JSON: %s", rest[0])

		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	defer func() { _ = store.Close() }()

	v, err := store.Update(ctx, func(json.RawMessage) (json.RawMessage, error) {
		return value, nil
	})
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	o.Println(string(v))

	return 0
}

func cmdUpdate(ctx context.Context, o *IO, cfg Config, args []string) int {
	rest, err := parseFileFlag(o, "update", &cfg, args)
	if err != nil {
		return 1
	}

	if len(rest) == 0 {
		o.Errorf("%v", errJSONRequired)

		return 1
	}

	patch := json.RawMessage(rest[0])
	if !json.Valid(patch) {
		o.Errorf("invalid JSON: %s", rest[0])

		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	defer func() { _ = store.Close() }()

	v, err := store.Update(ctx, mergeTransform(patch))
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	o.Println(string(v))

	return 0
}

// mergeTransform merges patch into the current value with JSON Merge Patch
// semantics (RFC 7386): objects merge recursively, null deletes a member,
// anything else replaces wholesale.
func mergeTransform(patch json.RawMessage) func(json.RawMessage) (json.RawMessage, error) {
	return func(cur json.RawMessage) (json.RawMessage, error) {
		var curVal, patchVal any

		if len(cur) > 0 {
			err := json.Unmarshal(cur, &curVal)
			if err != nil {
				return nil, fmt.Errorf("decode current value: %w", err)
			}
		}

		err := json.Unmarshal(patch, &patchVal)
		if err != nil {
			return nil, fmt.Errorf("decode patch: %w", err)
		}

		merged, err := json.Marshal(mergePatch(curVal, patchVal))
		if err != nil {
			return nil, fmt.Errorf("encode merged value: %w", err)
		}

		return json.RawMessage(merged), nil
	}
}

func mergePatch(current, patch any) any {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		return patch
	}

	curObj, ok := current.(map[string]any)
	if !ok {
		curObj = map[string]any{}
	}

	merged := make(map[string]any, len(curObj)+len(patchObj))
	for k, v := range curObj {
		merged[k] = v
	}

	for k, v := range patchObj {
		if v == nil {
			delete(merged, k)

			continue
		}

		merged[k] = mergePatch(merged[k], v)
	}

	return merged
}

func cmdWatch(ctx context.Context, o *IO, cfg Config, args []string) int {
	_, err := parseFileFlag(o, "watch", &cfg, args)
	if err != nil {
		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	defer func() { _ = store.Close() }()

	var failed bool

	store.Watch(ctx)(func(v json.RawMessage, watchErr error) bool {
		if watchErr != nil {
			o.Errorf("%v", watchErr)

			failed = true

			return false
		}

		o.Println(string(v))

		return true
	})

	if failed {
		return 1
	}

	return 0
}
