package mapactor

import "github.com/wanderer-industries/topologyd/model"

// buildFilteredView computes the BFS-from-home filtered view: the home
// system (status == 1) and everything reachable from it over the raw
// view's undirected edges. With no home system, the filtered view is
// empty. Every retained system has its map_id rewritten to mapID.
func buildFilteredView(raw model.View, mapID string) model.View {
	home, ok := findHome(raw.Systems)
	if !ok {
		return model.View{}
	}

	adjacency := buildAdjacency(raw.Connections)
	reachable := bfs(home.SolarSystemID, adjacency)

	var systems []model.System
	for _, sys := range raw.Systems {
		if !reachable[sys.SolarSystemID] {
			continue
		}
		sys.MapID = mapID
		systems = append(systems, sys)
	}

	var connections []model.Connection
	for _, conn := range raw.Connections {
		if reachable[conn.SolarSystemSource] && reachable[conn.SolarSystemTarget] {
			connections = append(connections, conn)
		}
	}

	return model.View{Systems: systems, Connections: connections}
}

func findHome(systems []model.System) (model.System, bool) {
	for _, sys := range systems {
		if sys.IsHome() {
			return sys, true
		}
	}
	return model.System{}, false
}

func buildAdjacency(connections []model.Connection) map[int64][]int64 {
	adjacency := make(map[int64][]int64)
	for _, conn := range connections {
		adjacency[conn.SolarSystemSource] = append(adjacency[conn.SolarSystemSource], conn.SolarSystemTarget)
		adjacency[conn.SolarSystemTarget] = append(adjacency[conn.SolarSystemTarget], conn.SolarSystemSource)
	}
	return adjacency
}

func bfs(start int64, adjacency map[int64][]int64) map[int64]bool {
	visited := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
