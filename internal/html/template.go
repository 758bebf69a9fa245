package html

// viewerHTML is the fixed viewer template. The embedded script is treated as
// an opaque front-end artifact; only the placeholder contract matters here.
const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>DLAS Case Viewer</title>
<style>
 html,body{margin:0;height:100%;background:#1b1e23;color:#e8e8e8;font-family:sans-serif}
 #bar{position:fixed;top:0;left:0;right:0;display:flex;align-items:center;gap:12px;
      padding:6px 12px;background:#23272e;z-index:10}
 #bar img{height:28px}
 #legend{position:fixed;right:12px;top:48px;background:#23272ecc;padding:8px 12px;
      border-radius:6px;font-size:12px;z-index:10}
 #legend .sw{display:inline-block;width:10px;height:10px;margin-right:6px;border-radius:2px}
 #view{position:absolute;inset:0}
 .off{opacity:.35;text-decoration:line-through}
</style>
</head>
<body>
<div id="bar">{{.TopLogo}}{{.UserLogo}}<span id="title">DLAS Case Viewer</span></div>
<div id="legend"></div>
<div id="view"></div>
<script type="importmap">
{"imports":{"three":"https://unpkg.com/three@0.160.0/build/three.module.js",
"three/addons/":"https://unpkg.com/three@0.160.0/examples/jsm/"}}
</script>
<script id="annotations" type="application/json">{{.AnnosJSON}}</script>
<script type="module">
import * as THREE from 'three';
import {OrbitControls} from 'three/addons/controls/OrbitControls.js';
import {GLTFLoader} from 'three/addons/loaders/GLTFLoader.js';

const MODELS = {{.JSModels}};
const COLORMAP = {{.Colormap}};

const scene = new THREE.Scene();
scene.background = new THREE.Color(0x1b1e23);
const camera = new THREE.PerspectiveCamera(45, innerWidth/innerHeight, 0.1, 5000);
camera.position.set(0, -120, 80);
const renderer = new THREE.WebGLRenderer({antialias:true});
renderer.setSize(innerWidth, innerHeight);
document.getElementById('view').appendChild(renderer.domElement);
scene.add(new THREE.HemisphereLight(0xffffff, 0x444466, 1.1));
const dir = new THREE.DirectionalLight(0xffffff, 0.8);
dir.position.set(1, -1, 2);
scene.add(dir);
const controls = new OrbitControls(camera, renderer.domElement);

const legend = document.getElementById('legend');
const loader = new GLTFLoader();
const groups = {};

function b64ToBuf(b64){
  const bin = atob(b64);
  const buf = new Uint8Array(bin.length);
  for (let i = 0; i < bin.length; i++) buf[i] = bin.charCodeAt(i);
  return buf.buffer;
}

for (const m of MODELS){
  loader.parse(b64ToBuf(m.b64), '', gltf => {
    const color = COLORMAP[m.group] !== undefined ? COLORMAP[m.group] : 0xcccccc;
    gltf.scene.traverse(o => {
      if (o.isMesh){
        o.material = new THREE.MeshStandardMaterial({
          color, roughness: 0.6, metalness: 0.05,
          transparent: m.group === 'bite', opacity: m.group === 'bite' ? 0.9 : 1,
        });
      }
    });
    gltf.scene.userData.group = m.group;
    (groups[m.group] = groups[m.group] || []).push(gltf.scene);
    scene.add(gltf.scene);
    refreshLegend();
  }, err => console.error('model ' + m.name, err));
}

function refreshLegend(){
  legend.innerHTML = '';
  const seen = new Set();
  for (const m of MODELS){
    if (!groups[m.group] || seen.has(m.group)) continue;
    seen.add(m.group);
    const row = document.createElement('div');
    const sw = document.createElement('span');
    sw.className = 'sw';
    sw.style.background = '#' + (COLORMAP[m.group]||0xcccccc).toString(16).padStart(6,'0');
    row.appendChild(sw);
    row.appendChild(document.createTextNode(m.displayName));
    row.style.cursor = 'pointer';
    row.onclick = () => {
      const vis = !groups[m.group][0].visible;
      groups[m.group].forEach(s => s.visible = vis);
      row.classList.toggle('off', !vis);
    };
    legend.appendChild(row);
  }
}

addEventListener('resize', () => {
  camera.aspect = innerWidth/innerHeight;
  camera.updateProjectionMatrix();
  renderer.setSize(innerWidth, innerHeight);
});

(function animate(){
  requestAnimationFrame(animate);
  controls.update();
  renderer.render(scene, camera);
})();
</script>
</body>
</html>
`
